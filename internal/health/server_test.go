package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeAlertView struct{ stale bool }

func (f fakeAlertView) AlertViewStale() bool { return f.stale }

func decodeReady(t *testing.T, rec *httptest.ResponseRecorder) ReadyResponse {
	t.Helper()
	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleReady_ReportsAlertViewFreshness(t *testing.T) {
	s := NewServer(Config{ServiceName: "dropwatch", DB: fakePinger{}, AlertView: fakeAlertView{stale: false}})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ready", nil)
	s.handleReady(rec, req)

	resp := decodeReady(t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["alert_view"])
}

func TestHandleReady_SurfacesStaleAlertViewWithoutFailingReadiness(t *testing.T) {
	s := NewServer(Config{ServiceName: "dropwatch", DB: fakePinger{}, AlertView: fakeAlertView{stale: true}})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ready", nil)
	s.handleReady(rec, req)

	resp := decodeReady(t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "stale", resp.Checks["alert_view"])
}

func TestHandleReady_OmitsAlertViewCheckWhenUnconfigured(t *testing.T) {
	s := NewServer(Config{ServiceName: "dropwatch", DB: fakePinger{}})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ready", nil)
	s.handleReady(rec, req)

	resp := decodeReady(t, rec)
	_, ok := resp.Checks["alert_view"]
	assert.False(t, ok)
}
