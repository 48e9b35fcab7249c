// Package runtime packages the process-wide mutable state described in
// §9: the upstream client (carrying the rate-limit token bucket), the
// timestamp-correction cooldown memory, and a handle on the alert view's
// staleness flag. It is initialized once at boot and torn down on
// shutdown; pure logic modules (matcher, normalize, sportrules,
// resultgate) never reach into it directly.
package runtime

import (
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/ecarrasco/dropwatch/internal/repository"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// correctionTTL is the cooldown window during which the pre-start
// checkpoint does not re-check the start_time of an event it already
// corrected; the checkpoint's finals capture and matcher run still
// proceed for that event.
const correctionTTL = 30 * time.Minute

// Runtime bundles the shared mutable state of one running process.
type Runtime struct {
	Upstream *upstream.Client

	views      repository.AlertViewRepository
	correction *cache.Cache
}

// New builds a Runtime over an already-constructed upstream client and
// alert-view repository.
func New(client *upstream.Client, views repository.AlertViewRepository) *Runtime {
	return &Runtime{
		Upstream:   client,
		views:      views,
		correction: cache.New(correctionTTL, 2*correctionTTL),
	}
}

// WasRecentlyCorrected reports whether eventID's start_time was corrected
// within the cooldown window, per §4.1's "does not re-evaluate E until
// the next tick after the update" rule.
func (r *Runtime) WasRecentlyCorrected(eventID int64) bool {
	_, found := r.correction.Get(key(eventID))
	return found
}

// MarkCorrected records that eventID's start_time was just corrected,
// starting its cooldown window.
func (r *Runtime) MarkCorrected(eventID int64) {
	r.correction.Set(key(eventID), time.Now().UTC(), cache.DefaultExpiration)
}

// AlertViewStale reports whether the alert-eligible view needs a refresh
// before the matcher next runs.
func (r *Runtime) AlertViewStale() bool {
	return r.views.StaleSince()
}

// MarkAlertViewDirty flags the alert-eligible view stale, called after
// any write to Event, OddsRecord, or Result.
func (r *Runtime) MarkAlertViewDirty() {
	r.views.MarkStale()
}

// Shutdown releases resources held by the runtime. Idempotent.
func (r *Runtime) Shutdown() {
	if r.Upstream != nil {
		r.Upstream.Close()
	}
	r.correction.Flush()
}

func key(eventID int64) string {
	return "event:" + strconv.FormatInt(eventID, 10)
}
