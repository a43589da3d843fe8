package sheets

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

func TestWebhook_Push(t *testing.T) {
	var got Change
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, time.Second, nil, nil)

	ack, err := wh.Push(context.Background(), Change{Entity: "users", Action: ActionCreate, Data: map[string]any{"id": 1}})
	require.NoError(t, err)
	assert.Equal(t, Ack{Acknowledged: true, Status: http.StatusOK}, ack)
	assert.Equal(t, "users", got.Entity)
	assert.Equal(t, ActionCreate, got.Action)

	status.Store(http.StatusInternalServerError)
	ack, err = wh.Push(context.Background(), Change{Entity: "trips", Action: ActionDelete})
	require.NoError(t, err)
	assert.False(t, ack.Acknowledged)
	assert.Equal(t, http.StatusInternalServerError, ack.Status)
}

func TestWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	ack, err := NewWebhook(url, time.Second, nil, nil).Push(context.Background(), Change{Entity: "users", Action: ActionDelete})
	require.Error(t, err)
	assert.False(t, ack.Acknowledged)
}
