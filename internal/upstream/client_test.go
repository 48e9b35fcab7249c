package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_RetriesOnTransientStatuses(t *testing.T) {
	cases := []struct {
		status int
		retry  bool
	}{
		{http.StatusProxyAuthRequired, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		resp := &http.Response{StatusCode: tc.status}
		retry, err := retryPolicy(noopCtx{}, resp, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.retry, retry, "status %d", tc.status)
	}
}

func TestRetryPolicy_RetriesOnNetworkError(t *testing.T) {
	retry, err := retryPolicy(noopCtx{}, nil, assert.AnError)
	require.NoError(t, err)
	assert.True(t, retry)
}

func TestFetchDroppingOdds_DecodesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"event_id": 1, "sport": "Tennis", "home_team": "A", "away_team": "B"}]`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:      srv.URL,
		RequestDelay: time.Millisecond,
		MaxRetries:   1,
		Timeout:      5 * time.Second,
	}, logrus.New())
	require.NoError(t, err)
	defer client.Close()

	entries, err := client.FetchDroppingOdds(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].EventID)
}

type noopCtx struct{}

func (noopCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (noopCtx) Done() <-chan struct{}       { return nil }
func (noopCtx) Err() error                  { return nil }
func (noopCtx) Value(key interface{}) interface{} { return nil }
