package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/nbcore/notebookcore/internal/config"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

func TestLoggerObserver(t *testing.T) {
	log := logger.New(config.LoggingConfig{Level: "debug", Format: "text"})

	t.Run("name and default nil filter", func(t *testing.T) {
		obs := NewLoggerObserver(WithLoggerInstance(log))
		assert.Equal(t, "logger", obs.Name())
		assert.Nil(t, obs.Filter())
	})

	t.Run("filter option applies", func(t *testing.T) {
		f := NewEventTypeFilter(EventTypeCellFailed)
		obs := NewLoggerObserver(WithLoggerInstance(log), WithLoggerFilter(f))
		assert.Same(t, f, obs.Filter())
	})

	t.Run("no-op without a logger", func(t *testing.T) {
		obs := NewLoggerObserver()
		err := obs.OnEvent(context.Background(), Event{Type: EventTypeCascadeStarted})
		assert.NoError(t, err)
	})

	t.Run("logs success and error events without failing", func(t *testing.T) {
		obs := NewLoggerObserver(WithLoggerInstance(log))
		cellID := "cell-1"

		err := obs.OnEvent(context.Background(), Event{
			Type: EventTypeCellCompleted, NotebookID: "nb-1", CellID: &cellID, Status: "success",
		})
		assert.NoError(t, err)

		err = obs.OnEvent(context.Background(), Event{
			Type: EventTypeCellFailed, NotebookID: "nb-1", CellID: &cellID,
			Status: "error", Error: errors.New("boom"),
		})
		assert.NoError(t, err)
	})
}
