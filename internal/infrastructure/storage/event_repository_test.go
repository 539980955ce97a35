package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nbcore/notebookcore/internal/domain/repository"
)

func TestEventRepository_Append(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewEventRepository(bunDB)

	mock.ExpectExec("^INSERT INTO \"notebook_events\"").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), repository.EventRecord{
		NotebookID: "nb-1",
		EventType:  "cell.completed",
		CellID:     "cell-1",
		Status:     "success",
		Payload:    map[string]any{"reads": []string{"x"}},
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_Append_Error(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewEventRepository(bunDB)

	mock.ExpectExec("^INSERT INTO \"notebook_events\"").WillReturnError(context.DeadlineExceeded)

	err := repo.Append(context.Background(), repository.EventRecord{NotebookID: "nb-1", EventType: "kernel.error"})
	require.Error(t, err)
}
