package observer

import (
	"context"
	"fmt"

	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
)

// LoggerObserver logs notebook lifecycle events through structured
// logging (slog, via logger.Logger).
type LoggerObserver struct {
	name   string
	logger *logger.Logger
	filter EventFilter
}

type LoggerObserverOption func(*LoggerObserver)

func WithLoggerInstance(l *logger.Logger) LoggerObserverOption {
	return func(o *LoggerObserver) { o.logger = l }
}

func WithLoggerFilter(filter EventFilter) LoggerObserverOption {
	return func(o *LoggerObserver) { o.filter = filter }
}

func NewLoggerObserver(opts ...LoggerObserverOption) *LoggerObserver {
	obs := &LoggerObserver{name: "logger"}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

func (o *LoggerObserver) Name() string { return o.name }

func (o *LoggerObserver) Filter() EventFilter { return o.filter }

func (o *LoggerObserver) OnEvent(ctx context.Context, event Event) error {
	if o.logger == nil {
		return nil
	}

	fields := []any{
		"event_type", string(event.Type),
		"notebook_id", event.NotebookID,
		"status", event.Status,
	}
	if event.CellID != nil {
		fields = append(fields, "cell_id", *event.CellID)
	}
	if event.CellType != nil {
		fields = append(fields, "cell_type", *event.CellType)
	}
	if event.CascadeIndex != nil {
		fields = append(fields, "cascade_index", *event.CascadeIndex)
	}
	if event.CascadeTotal != nil {
		fields = append(fields, "cascade_total", *event.CascadeTotal)
	}

	msg := fmt.Sprintf("notebook event: %s", event.Type)
	if event.Error != nil {
		fields = append(fields, "error", event.Error.Error())
		o.logger.ErrorContext(ctx, msg, fields...)
	} else {
		o.logger.InfoContext(ctx, msg, fields...)
	}

	return nil
}
