package vast

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

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClientWithBaseURL("test-key", srv.URL)
}

func instancesHandler(t *testing.T, instances []Instance) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instances/", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		_ = json.NewEncoder(w).Encode(map[string]any{"instances": instances})
	}
}

func TestList(t *testing.T) {
	_, c := newTestServer(t, instancesHandler(t, []Instance{
		{ID: 101, Label: "ocr-worker", ActualStatus: "running", GPUName: "RTX 4090", SSHHost: "ssh4.vast.ai", SSHPort: 2201, DPHTotal: 0.42},
		{ID: 102, ActualStatus: "loading"},
	}))

	instances, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, int64(101), instances[0].ID)
	assert.True(t, instances[0].Running())
	assert.False(t, instances[1].Running())
}

func TestListMissingKey(t *testing.T) {
	c := NewClient("")
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VAST_API_KEY")
}

func TestListBadStatus(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestGet(t *testing.T) {
	_, c := newTestServer(t, instancesHandler(t, []Instance{{ID: 7, ActualStatus: "running"}}))

	in, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), in.ID)

	_, err = c.Get(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWaitRunning(t *testing.T) {
	var calls atomic.Int64
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		status := "loading"
		if calls.Add(1) >= 3 {
			status = "running"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"instances": []Instance{{ID: 55, ActualStatus: status}},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, err := c.WaitRunning(ctx, 55, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, in.Running())
	assert.GreaterOrEqual(t, calls.Load(), int64(3))
}

func TestWaitRunningContextExpires(t *testing.T) {
	_, c := newTestServer(t, instancesHandler(t, []Instance{{ID: 55, ActualStatus: "loading"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.WaitRunning(ctx, 55, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
