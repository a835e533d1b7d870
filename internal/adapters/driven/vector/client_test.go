package vector

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

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Endpoint:    server.URL,
		Token:       "secret",
		Namespace:   "docs",
		BackoffBase: time.Millisecond,
	})
	require.NoError(t, err)
	return client, server
}

func TestStore_Success(t *testing.T) {
	var gotForm map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"action":    r.FormValue("action"),
			"title":     r.FormValue("title"),
			"text":      r.FormValue("text"),
			"metadata":  r.FormValue("metadata"),
			"namespace": r.FormValue("namespace"),
			"token":     r.FormValue("token"),
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"vector_id": "vec-42",
			"namespace": "docs",
		})
	})

	ref, err := client.Store(context.Background(), "Guide", "section text",
		map[string]string{"doc_id": "doc-1"})

	require.NoError(t, err)
	assert.Equal(t, "vec-42", ref.VectorID)
	assert.Equal(t, "docs", ref.Namespace)

	assert.Equal(t, "store", gotForm["action"])
	assert.Equal(t, "Guide", gotForm["title"])
	assert.Equal(t, "section text", gotForm["text"])
	assert.Equal(t, "docs", gotForm["namespace"])
	assert.Equal(t, "secret", gotForm["token"])

	var metadata map[string]string
	require.NoError(t, json.Unmarshal([]byte(gotForm["metadata"]), &metadata))
	assert.Equal(t, "doc-1", metadata["doc_id"])
}

func TestStore_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "vector_id": "vec-1"})
	})

	ref, err := client.Store(context.Background(), "Guide", "text", nil)

	require.NoError(t, err)
	assert.Equal(t, "vec-1", ref.VectorID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStore_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Store(context.Background(), "Guide", "text", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestStore_APIRejectionNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "error",
			"error":  "text too long",
		})
	})

	_, err := client.Store(context.Background(), "Guide", "text", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "text too long")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDelete_Success(t *testing.T) {
	var gotAction, gotVectorID, gotNamespace string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotAction = r.FormValue("action")
		gotVectorID = r.FormValue("vector_id")
		gotNamespace = r.FormValue("namespace")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	err := client.Delete(context.Background(), "vec-42", "docs")

	require.NoError(t, err)
	assert.Equal(t, "delete", gotAction)
	assert.Equal(t, "vec-42", gotVectorID)
	assert.Equal(t, "docs", gotNamespace)
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestStore_ContextCancelledDuringBackoff(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	// Make the backoff long enough that cancellation wins.
	client.backoffBase = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Store(ctx, "Guide", "text", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
