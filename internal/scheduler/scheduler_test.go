package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecarrasco/dropwatch/internal/config"
	"github.com/ecarrasco/dropwatch/internal/logger"
	"github.com/ecarrasco/dropwatch/internal/matcher"
	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/normalize"
	"github.com/ecarrasco/dropwatch/internal/notifier"
	"github.com/ecarrasco/dropwatch/internal/runtime"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// fakeEventRepo implements repository.EventRepository, recording every
// write so tests can assert on call counts without a database.
type fakeEventRepo struct {
	mu               sync.Mutex
	groundTypeWrites int
	startTimeWrites  []time.Time
}

func (f *fakeEventRepo) Upsert(context.Context, *models.Event) error           { return nil }
func (f *fakeEventRepo) GetByID(context.Context, int64) (*models.Event, error) { return nil, models.ErrNotFound }
func (f *fakeEventRepo) UpdateStartTime(_ context.Context, _ int64, startTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startTimeWrites = append(f.startTimeWrites, startTime)
	return nil
}
func (f *fakeEventRepo) ListInPreStartWindow(context.Context, int) ([]*models.Event, error) {
	return nil, nil
}
func (f *fakeEventRepo) ListMissingResultsSince(context.Context, int) ([]*models.Event, error) {
	return nil, nil
}
func (f *fakeEventRepo) ListAllMissingResults(context.Context) ([]*models.Event, error) { return nil, nil }
func (f *fakeEventRepo) ListRecent(context.Context, int) ([]*models.Event, error)       { return nil, nil }
func (f *fakeEventRepo) MarkChecked(context.Context, int64) error                       { return nil }
func (f *fakeEventRepo) MarkStatus(context.Context, int64, models.EventStatus) error     { return nil }
func (f *fakeEventRepo) UpdateGroundType(_ context.Context, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groundTypeWrites++
	return nil
}

func (f *fakeEventRepo) startTimeWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.startTimeWrites)
}

// fakeOddsRepo implements repository.OddsRepository over an in-memory map.
type fakeOddsRepo struct {
	mu          sync.Mutex
	records     map[int64]*models.OddsRecord
	finalsCalls int
}

func newFakeOddsRepo() *fakeOddsRepo {
	return &fakeOddsRepo{records: map[int64]*models.OddsRecord{}}
}

func (f *fakeOddsRepo) UpsertOpening(_ context.Context, o *models.OddsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[o.EventID] = o
	return nil
}

func (f *fakeOddsRepo) ApplyFinals(_ context.Context, o *models.OddsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[o.EventID] = o
	f.finalsCalls++
	return nil
}

func (f *fakeOddsRepo) GetByEventID(_ context.Context, eventID int64) (*models.OddsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.records[eventID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOddsRepo) InsertSnapshot(context.Context, *models.OddsSnapshot) error { return nil }
func (f *fakeOddsRepo) InsertSnapshotBatch(context.Context, []*models.OddsSnapshot) error {
	return nil
}
func (f *fakeOddsRepo) ListMissingFinals(context.Context) ([]*models.Event, error) { return nil, nil }

// fakeViews implements repository.AlertViewRepository with no candidates
// ever on offer — enough to drive the matcher to NO_CANDIDATES without a
// database.
type fakeViews struct {
	stale atomic.Bool
}

func newFakeViews() *fakeViews {
	v := &fakeViews{}
	v.stale.Store(true)
	return v
}

func (v *fakeViews) FindCandidates(context.Context, string, string, decimal.Decimal, *decimal.Decimal, decimal.Decimal, decimal.Decimal, int64) ([]models.Candidate, error) {
	return nil, nil
}
func (v *fakeViews) Refresh(context.Context) error { v.stale.Store(false); return nil }
func (v *fakeViews) StaleSince() bool              { return v.stale.Load() }
func (v *fakeViews) MarkStale()                    { v.stale.Store(true) }

// fakeDecisionLogRepo records every inserted row.
type fakeDecisionLogRepo struct {
	mu     sync.Mutex
	logged []*models.DecisionLog
}

func (f *fakeDecisionLogRepo) Insert(_ context.Context, log *models.DecisionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, log)
	return nil
}

func (f *fakeDecisionLogRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logged)
}

// footballMarkets builds a minimal 1X2 market block for Football
// (has_draw=true) with the given fractional quotes.
func footballMarkets(one, x, two string) []upstream.MarketBlock {
	return []upstream.MarketBlock{{
		Name:    "1X2",
		Outcome: map[string]string{"1": one, "x": x, "2": two},
	}}
}

// newTestScheduler builds a Scheduler wired against fakes and an
// upstream.Client pointed at an httptest server, so the checkpoint and
// timestamp-correction paths run end to end without a database.
func newTestScheduler(t *testing.T, handler http.HandlerFunc, cfgOverride func(*config.Config)) (*Scheduler, *httptest.Server, *fakeEventRepo, *fakeOddsRepo, *fakeDecisionLogRepo) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		PollIntervalMinutes:    1,
		DiscoveryIntervalHours: 1,
		PreStartWindowMinutes:  30,
		RequestDelaySeconds:    1,
		MaxRetries:             0,
	}
	if cfgOverride != nil {
		cfgOverride(cfg)
	}

	client, err := upstream.NewClient(upstream.ClientConfig{
		BaseURL:      server.URL,
		RequestDelay: time.Millisecond,
		MaxRetries:   0,
		Timeout:      2 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	events := &fakeEventRepo{}
	odds := newFakeOddsRepo()
	views := newFakeViews()
	decisionLogs := &fakeDecisionLogRepo{}
	rules := sportrules.Load()

	sched := New(Deps{
		Config:         cfg,
		Runtime:        runtime.New(client, views),
		UpstreamClient: client,
		Events:         events,
		Odds:           odds,
		Results:        nil,
		Views:          views,
		DecisionLogs:   decisionLogs,
		Normalizer:     normalize.NewNormalizer(nil),
		Matcher:        matcher.NewMatcher(views, rules, nil),
		Gate:           nil,
		Notifier:       notifier.NewNotifier(nil, 0, false, nil),
		Rules:          rules,
		DecisionLog:    logger.NewDecisionLogger(logrus.New()),
		Log:            nil,
	})
	return sched, server, events, odds, decisionLogs
}

func footballEvent(id int64, start time.Time) *models.Event {
	return &models.Event{
		ID: id, Sport: "Football", Competition: "Test League",
		HomeTeam: "Home FC", AwayTeam: "Away FC", StartTimeUTC: start, Status: models.StatusScheduled,
	}
}

func TestProcessPreStartCheckpoint_OutsideCheckpointMinutesMakesNoUpstreamCall(t *testing.T) {
	var requests atomic.Int64
	sched, _, _, _, _ := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}, nil)

	now := time.Now().UTC()
	for _, minutes := range []int{31, 29, 6, 4, 0, -5} {
		e := footballEvent(1, now.Add(time.Duration(minutes)*time.Minute))
		err := sched.processPreStartCheckpoint(context.Background(), e)
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(0), requests.Load(), "no checkpoint minute should ever reach the upstream")
}

// TestProcessPreStartCheckpoint_RecentlyCorrectedOnlySkipsTimestampRecheck
// covers the case a T-30 correction and a T-5 checkpoint both fall
// inside the 30-minute correction cooldown: the cooldown must suppress
// only the timestamp re-check (no /events/{id} detail call), never the
// finals fetch and matcher evaluation that follow.
func TestProcessPreStartCheckpoint_RecentlyCorrectedOnlySkipsTimestampRecheck(t *testing.T) {
	var detailRequests, oddsRequests atomic.Int64
	sched, _, _, odds, decisionLogs := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == fmt.Sprintf("/api/v1/events/%d", 42) {
			detailRequests.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		oddsRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		doc := upstream.EventOddsDocument{EventID: 42, Markets: footballMarkets("6/4", "9/4", "3/1")}
		_ = json.NewEncoder(w).Encode(doc)
	}, func(c *config.Config) { c.EnableTimestampCorrection = true })

	one := decimal.NewFromFloat(2.0)
	two := decimal.NewFromFloat(1.8)
	x := decimal.NewFromFloat(3.0)
	require.NoError(t, odds.UpsertOpening(context.Background(), &models.OddsRecord{
		EventID: 42, Market: models.Market1X2, OneOpen: &one, XOpen: &x, TwoOpen: &two,
	}))

	e := footballEvent(42, time.Now().UTC().Add(30*time.Minute))
	sched.rt.MarkCorrected(e.ID)

	err := sched.processPreStartCheckpoint(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, int64(0), detailRequests.Load(), "cooldown must suppress the timestamp re-check")
	assert.Equal(t, int64(1), oddsRequests.Load(), "cooldown must not suppress the finals fetch")
	assert.Equal(t, 1, odds.finalsCalls)
	assert.Equal(t, 1, decisionLogs.count(), "the matcher must still run and persist a verdict during the cooldown")
}

func TestProcessPreStartCheckpoint_CapturesFinalsAtThirtyMinutes(t *testing.T) {
	sched, _, _, odds, decisionLogs := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		doc := upstream.EventOddsDocument{EventID: 7, Markets: footballMarkets("6/4", "9/4", "3/1")}
		_ = json.NewEncoder(w).Encode(doc)
	}, func(c *config.Config) { c.EnableTimestampCorrection = false })

	one := decimal.NewFromFloat(2.0)
	two := decimal.NewFromFloat(1.8)
	x := decimal.NewFromFloat(3.0)
	require.NoError(t, odds.UpsertOpening(context.Background(), &models.OddsRecord{
		EventID: 7, Market: models.Market1X2, OneOpen: &one, XOpen: &x, TwoOpen: &two,
	}))

	e := footballEvent(7, time.Now().UTC().Add(30*time.Minute))
	err := sched.processPreStartCheckpoint(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, 1, odds.finalsCalls)
	stored, err := odds.GetByEventID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, stored.OneFinal)
	assert.Equal(t, 1, decisionLogs.count(), "a verdict should have been persisted to the decision log")
}

func TestProcessPreStartCheckpoint_AtFiveMinutesAlsoFires(t *testing.T) {
	var requests atomic.Int64
	sched, _, _, odds, _ := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		doc := upstream.EventOddsDocument{EventID: 9, Markets: footballMarkets("6/4", "9/4", "3/1")}
		_ = json.NewEncoder(w).Encode(doc)
	}, nil)

	one := decimal.NewFromFloat(2.0)
	two := decimal.NewFromFloat(1.8)
	x := decimal.NewFromFloat(3.0)
	require.NoError(t, odds.UpsertOpening(context.Background(), &models.OddsRecord{
		EventID: 9, Market: models.Market1X2, OneOpen: &one, XOpen: &x, TwoOpen: &two,
	}))

	e := footballEvent(9, time.Now().UTC().Add(5*time.Minute))
	err := sched.processPreStartCheckpoint(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())
}

func TestApplyTimestampCorrection_DriftBeyondOneMinuteCorrectsAndSkipsCheckpoint(t *testing.T) {
	var oddsRequests atomic.Int64
	upstreamStart := time.Now().UTC().Add(35 * time.Minute)

	sched, _, events, _, _ := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == fmt.Sprintf("/api/v1/events/%d", 11) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(upstream.EventDetail{EventID: 11, StatusCode: 0, StartTime: upstreamStart})
			return
		}
		oddsRequests.Add(1)
		w.WriteHeader(http.StatusOK)
	}, func(c *config.Config) { c.EnableTimestampCorrection = true })

	// minutes_to_start must land on a checkpoint boundary against the
	// *local* start_time for processPreStartCheckpoint to even look; the
	// upstream detail response above disagrees with it by 5 minutes.
	e := footballEvent(11, time.Now().UTC().Add(30*time.Minute))

	err := sched.processPreStartCheckpoint(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, 1, events.startTimeWriteCount(), "drift beyond one minute should correct start_time")
	assert.Equal(t, int64(0), oddsRequests.Load(), "a correcting tick must skip this checkpoint's odds fetch")
	assert.True(t, sched.rt.WasRecentlyCorrected(11))
}

func TestApplyTimestampCorrection_SmallDriftIsIgnored(t *testing.T) {
	upstreamStart := time.Now().UTC().Add(30*time.Minute + 30*time.Second)

	var oddsRequests atomic.Int64
	sched, _, events, odds, _ := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == fmt.Sprintf("/api/v1/events/%d", 13) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(upstream.EventDetail{EventID: 13, StatusCode: 0, StartTime: upstreamStart})
			return
		}
		oddsRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		doc := upstream.EventOddsDocument{EventID: 13, Markets: footballMarkets("6/4", "9/4", "3/1")}
		_ = json.NewEncoder(w).Encode(doc)
	}, func(c *config.Config) { c.EnableTimestampCorrection = true })

	one := decimal.NewFromFloat(2.0)
	two := decimal.NewFromFloat(1.8)
	x := decimal.NewFromFloat(3.0)
	require.NoError(t, odds.UpsertOpening(context.Background(), &models.OddsRecord{
		EventID: 13, Market: models.Market1X2, OneOpen: &one, XOpen: &x, TwoOpen: &two,
	}))

	e := footballEvent(13, time.Now().UTC().Add(30*time.Minute))
	err := sched.processPreStartCheckpoint(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, 0, events.startTimeWriteCount(), "sub-minute drift must not trigger a correction")
	assert.Equal(t, int64(1), oddsRequests.Load(), "checkpoint should proceed once the detail call confirms only small drift")
}

func TestRunJob_SkipsOverlappingTick(t *testing.T) {
	sched, _, _, _, _ := newTestScheduler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int64

	go func() {
		_ = sched.runJob(context.Background(), jobDiscovery, func(ctx context.Context) error {
			calls.Add(1)
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := sched.runJob(context.Background(), jobDiscovery, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err, "a skipped tick is not an error")
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load(), "the overlapping tick must never run its function")
}
