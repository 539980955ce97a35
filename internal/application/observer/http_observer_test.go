package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCallbackObserver(t *testing.T) {
	t.Run("name and default options", func(t *testing.T) {
		obs := NewHTTPCallbackObserver("http://example.invalid")
		assert.Equal(t, "http_callback", obs.Name())
		assert.Equal(t, "POST", obs.method)
		assert.Equal(t, 3, obs.maxRetries)
	})

	t.Run("posts the event payload and headers", func(t *testing.T) {
		var received map[string]any
		var gotHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("X-Source")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		obs := NewHTTPCallbackObserver(srv.URL,
			WithHTTPHeaders(map[string]string{"X-Source": "notebookcore"}),
			WithHTTPTimeout(2*time.Second),
		)

		cellID := "cell-1"
		err := obs.OnEvent(context.Background(), Event{
			Type: EventTypeCellCompleted, NotebookID: "nb-1", CellID: &cellID, Status: "success",
		})
		require.NoError(t, err)
		assert.Equal(t, "notebookcore", gotHeader)
		assert.Equal(t, "cell.completed", received["event_type"])
		assert.Equal(t, "nb-1", received["notebook_id"])
	})

	t.Run("retries on failure and eventually gives up", func(t *testing.T) {
		var attempts int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		obs := NewHTTPCallbackObserver(srv.URL, WithHTTPRetry(2, time.Millisecond, 1.0))
		err := obs.OnEvent(context.Background(), Event{Type: EventTypeKernelError})
		assert.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("succeeds once the server recovers", func(t *testing.T) {
		var attempts int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		obs := NewHTTPCallbackObserver(srv.URL, WithHTTPRetry(3, time.Millisecond, 1.0))
		err := obs.OnEvent(context.Background(), Event{Type: EventTypeCascadeComplete})
		assert.NoError(t, err)
	})
}
