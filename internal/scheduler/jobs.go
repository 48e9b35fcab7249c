package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/matcher"
	"github.com/ecarrasco/dropwatch/internal/metrics"
	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// runDiscoveryTick fetches the dropping-odds catalog and upserts every
// event plus its opening odds, per §4.1's discovery responsibility.
func (s *Scheduler) runDiscoveryTick(ctx context.Context) error {
	entries, err := s.upstreamClient.FetchDroppingOdds(ctx)
	if err != nil {
		return fmt.Errorf("fetch dropping odds: %w", err)
	}
	if s.decisionLog != nil {
		s.decisionLog.LogSchedulerTick(jobDiscovery, len(entries))
	}

	now := time.Now().UTC()
	var processed, failed atomic.Int64
	forEachBounded(ctx, entries, func(ctx context.Context, entry upstream.DiscoveryEntry) {
		if err := s.discoverEvent(ctx, entry, now); err != nil {
			failed.Add(1)
			if s.log != nil {
				s.log.WithError(err).WithField("event_id", entry.EventID).Warn("scheduler: discovery failed for event")
			}
			return
		}
		processed.Add(1)
	})

	if s.log != nil {
		s.log.WithFields(logrus.Fields{"processed": processed.Load(), "failed": failed.Load()}).Info("scheduler: discovery tick complete")
	}
	return nil
}

// discoverEvent upserts one discovery entry and its opening odds. A
// market the normalizer can't read (wrong arity, unparsable prices)
// skips the odds write but still leaves the event recorded, since
// discovery itself succeeded.
func (s *Scheduler) discoverEvent(ctx context.Context, entry upstream.DiscoveryEntry, now time.Time) error {
	e := s.normalizer.NormalizeEvent(entry)
	if err := s.events.Upsert(ctx, e); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	s.rt.MarkAlertViewDirty()

	hasDraw := s.rules.HasDraw(e.Sport)
	opening, err := s.normalizer.NormalizeOpening(e.ID, entry.Markets, hasDraw, now)
	if err != nil {
		metrics.RecordNormalizationError()
		return nil
	}
	if err := s.odds.UpsertOpening(ctx, opening); err != nil {
		return fmt.Errorf("upsert opening odds: %w", err)
	}

	rawJSON, _ := json.Marshal(entry.Markets)
	snapshot, err := s.normalizer.NormalizeSnapshot(e.ID, entry.Markets, hasDraw, now, string(rawJSON))
	if err != nil {
		return nil
	}
	if err := s.odds.InsertSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("insert opening snapshot: %w", err)
	}
	return nil
}

// runPreStartTick sweeps every event inside the configured pre-start
// window and checkpoints each one independently.
func (s *Scheduler) runPreStartTick(ctx context.Context) error {
	events, err := s.events.ListInPreStartWindow(ctx, s.cfg.PreStartWindowMinutes)
	if err != nil {
		return fmt.Errorf("list events in pre-start window: %w", err)
	}
	metrics.SetEventsInPreStartWindow(len(events))
	if s.decisionLog != nil {
		s.decisionLog.LogSchedulerTick(jobPreStart, len(events))
	}

	forEachBounded(ctx, events, func(ctx context.Context, e *models.Event) {
		if err := s.processPreStartCheckpoint(ctx, e); err != nil && s.log != nil {
			s.log.WithError(err).WithField("event_id", e.ID).Warn("scheduler: pre-start checkpoint failed")
		}
	})
	return nil
}

// processPreStartCheckpoint implements §4.1's checkpoint policy: a
// finals refresh happens iff minutes_to_start is exactly 30 or 5
// (rounded). Outside those two minutes the sweep still visits the
// event but makes no upstream call for it.
func (s *Scheduler) processPreStartCheckpoint(ctx context.Context, e *models.Event) error {
	now := time.Now().UTC()
	minutes := e.MinutesToStart(now)
	if minutes != 30 && minutes != 5 {
		return nil
	}

	recentlyCorrected := s.rt.WasRecentlyCorrected(e.ID)
	checkTimestamp := s.cfg.EnableTimestampCorrection && !recentlyCorrected

	needsDetail := checkTimestamp || (s.rules.GroundAware(e.Sport) && e.GroundType == nil)
	if needsDetail {
		detail, err := s.upstreamClient.FetchEventDetail(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("fetch event detail: %w", err)
		}

		if s.rules.GroundAware(e.Sport) && e.GroundType == nil && detail.GroundType != nil {
			if err := s.events.UpdateGroundType(ctx, e.ID, *detail.GroundType); err != nil {
				return fmt.Errorf("update ground type: %w", err)
			}
			e.GroundType = detail.GroundType
		}

		if checkTimestamp && !detail.StartTime.IsZero() {
			corrected, skip, err := s.applyTimestampCorrection(ctx, e, detail.StartTime.UTC())
			if err != nil {
				return err
			}
			if corrected || skip {
				// §4.1: skip this tick's checkpoint to prevent a feedback
				// loop against the just-written start_time.
				return nil
			}
		}
	}

	return s.captureCheckpointAndEvaluate(ctx, e)
}

// applyTimestampCorrection cross-checks the local start_time against
// upstreamStart and, on divergence beyond one minute, corrects it and
// starts the cooldown, per §4.1/§8 scenario 6.
func (s *Scheduler) applyTimestampCorrection(ctx context.Context, e *models.Event, upstreamStart time.Time) (corrected, skip bool, err error) {
	drift := upstreamStart.Sub(e.StartTimeUTC)
	if drift < 0 {
		drift = -drift
	}
	if drift <= time.Minute {
		return false, false, nil
	}

	oldStart := e.StartTimeUTC
	if err := s.events.UpdateStartTime(ctx, e.ID, upstreamStart); err != nil {
		return false, false, fmt.Errorf("correct start_time for event %d: %w", e.ID, err)
	}
	e.StartTimeUTC = upstreamStart
	s.rt.MarkCorrected(e.ID)
	s.rt.MarkAlertViewDirty()
	metrics.RecordTimestampCorrection()
	if s.decisionLog != nil {
		s.decisionLog.LogTimestampCorrection(e.ID, oldStart, upstreamStart)
	}
	return true, true, nil
}

// captureCheckpointAndEvaluate fetches current odds, writes the finals
// and derived variation, then runs the matcher and delivers its
// verdict. Used by the pre-start checkpoint and by the final-odds
// backfill, which replays the same capture-then-evaluate sequence for
// events a missed checkpoint left without a final triple.
func (s *Scheduler) captureCheckpointAndEvaluate(ctx context.Context, e *models.Event) error {
	doc, err := s.upstreamClient.FetchEventOdds(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("fetch event odds: %w", err)
	}

	existing, err := s.odds.GetByEventID(ctx, e.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if s.log != nil {
				s.log.WithField("event_id", e.ID).Warn("scheduler: checkpoint reached with no opening odds on record")
			}
			return nil
		}
		return fmt.Errorf("load odds record for event %d: %w", e.ID, err)
	}

	hasDraw := s.rules.HasDraw(e.Sport)
	now := time.Now().UTC()
	if err := s.normalizer.NormalizeFinals(existing, doc.Markets, hasDraw, now); err != nil {
		metrics.RecordNormalizationError()
		return nil
	}

	if err := s.odds.ApplyFinals(ctx, existing); err != nil {
		return fmt.Errorf("apply final odds for event %d: %w", e.ID, err)
	}

	rawJSON, _ := json.Marshal(doc.Markets)
	if snapshot, err := s.normalizer.NormalizeSnapshot(e.ID, doc.Markets, hasDraw, now, string(rawJSON)); err == nil {
		if err := s.odds.InsertSnapshot(ctx, snapshot); err != nil && s.log != nil {
			s.log.WithError(err).WithField("event_id", e.ID).Warn("scheduler: checkpoint snapshot insert failed")
		}
	}

	s.rt.MarkAlertViewDirty()

	verdict, err := s.evaluate(ctx, e, existing)
	if err != nil {
		return fmt.Errorf("evaluate matcher for event %d: %w", e.ID, err)
	}

	s.notifier.Deliver(ctx, verdict)
	return nil
}

// evaluate refreshes the alert-eligible view if stale, then runs the
// matcher over e's odds record and records the verdict.
func (s *Scheduler) evaluate(ctx context.Context, e *models.Event, o *models.OddsRecord) (*models.Verdict, error) {
	if s.rt.AlertViewStale() {
		if err := s.views.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh alert view: %w", err)
		}
		metrics.SetAlertViewStale(false)
	}

	if o.VarOne == nil || o.VarTwo == nil {
		return &models.Verdict{
			EventID: e.ID, Home: e.HomeTeam, Away: e.AwayTeam,
			Competition: e.Competition, Sport: e.Sport, Status: models.StatusNoCandidates,
		}, nil
	}

	vec := matcher.Vector{
		EventID: e.ID, Sport: e.Sport, GroundType: groundTypeString(e.GroundType),
		Home: e.HomeTeam, Away: e.AwayTeam, Competition: e.Competition,
		VarOne: *o.VarOne, VarX: o.VarX, VarTwo: *o.VarTwo,
	}

	start := time.Now()
	verdict, err := s.matcher.Evaluate(ctx, vec)
	metrics.RecordMatcherEvaluationDuration(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.RecordMatcherVerdict(string(verdict.Status))
	if s.decisionLog != nil {
		s.decisionLog.LogVerdict(e.ID, string(verdict.Status), string(verdict.VariationTier), string(verdict.ResultTier), verdict.Confidence, len(verdict.Candidates))
	}
	s.persistVerdict(ctx, e.ID, verdict)
	return verdict, nil
}

// persistVerdict appends a DecisionLog row for verdict, the alert-log
// audit trail kept regardless of notifier gating. A write failure is
// logged, never returned — the caller's verdict still stands.
func (s *Scheduler) persistVerdict(ctx context.Context, eventID int64, verdict *models.Verdict) {
	if s.decisionLogs == nil {
		return
	}
	payload, err := json.Marshal(verdict)
	if err != nil {
		return
	}
	row := models.NewDecisionLog(eventID, string(verdict.Status), time.Now().UTC(), payload)
	if err := s.decisionLogs.Insert(ctx, &row); err != nil && s.log != nil {
		s.log.WithError(err).WithField("event_id", eventID).Warn("scheduler: decision log insert failed")
	}
}

func groundTypeString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// runMidnightTick scans events that started in the preceding 24 hours
// and lack a Result, per the midnight result sweep's responsibility.
func (s *Scheduler) runMidnightTick(ctx context.Context) error {
	events, err := s.events.ListMissingResultsSince(ctx, 24)
	if err != nil {
		return fmt.Errorf("list events missing results: %w", err)
	}
	return s.ingestResults(ctx, jobMidnight, events)
}

// runResultsAllTick is the bulk result backfill: the same ingestion as
// the midnight sweep, over every non-cancelled event lacking a result
// regardless of age.
func (s *Scheduler) runResultsAllTick(ctx context.Context) error {
	events, err := s.events.ListAllMissingResults(ctx)
	if err != nil {
		return fmt.Errorf("list events missing results: %w", err)
	}
	return s.ingestResults(ctx, jobResultsAll, events)
}

func (s *Scheduler) ingestResults(ctx context.Context, job string, events []*models.Event) error {
	if s.decisionLog != nil {
		s.decisionLog.LogSchedulerTick(job, len(events))
	}

	now := time.Now().UTC()
	stats := s.gate.IngestAll(ctx, s.upstreamClient, events, now)
	for i := 0; i < stats.Updated; i++ {
		metrics.RecordResultWritten()
	}
	if stats.Updated > 0 {
		s.rt.MarkAlertViewDirty()
	}

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"job": job, "updated": stats.Updated, "skipped": stats.Skipped, "failed": stats.Failed,
		}).Info("scheduler: result sweep complete")
	}
	return nil
}

// runFinalOddsAllTick replays the checkpoint capture for every started,
// non-cancelled event whose final odds were never recorded — typically
// events a missed pre-start tick skipped entirely.
func (s *Scheduler) runFinalOddsAllTick(ctx context.Context) error {
	events, err := s.odds.ListMissingFinals(ctx)
	if err != nil {
		return fmt.Errorf("list events missing final odds: %w", err)
	}
	if s.decisionLog != nil {
		s.decisionLog.LogSchedulerTick(jobFinalOddsAll, len(events))
	}

	var updated atomic.Int64
	forEachBounded(ctx, events, func(ctx context.Context, e *models.Event) {
		if err := s.captureCheckpointAndEvaluate(ctx, e); err != nil {
			if s.log != nil {
				s.log.WithError(err).WithField("event_id", e.ID).Warn("scheduler: final-odds backfill failed for event")
			}
			return
		}
		updated.Add(1)
	})

	if s.log != nil {
		s.log.WithFields(logrus.Fields{"updated": updated.Load(), "total": len(events)}).Info("scheduler: final-odds backfill complete")
	}
	return nil
}

// Discovery runs the discovery job once, outside its cron schedule.
func (s *Scheduler) Discovery(ctx context.Context) error {
	return s.runJob(ctx, jobDiscovery, s.runDiscoveryTick)
}

// PreStart runs the pre-start sweep once, outside its cron schedule.
func (s *Scheduler) PreStart(ctx context.Context) error {
	return s.runJob(ctx, jobPreStart, s.runPreStartTick)
}

// Midnight runs the 24h result sweep once, outside its cron schedule.
func (s *Scheduler) Midnight(ctx context.Context) error {
	return s.runJob(ctx, jobMidnight, s.runMidnightTick)
}

// Results is the `results` CLI verb: an ad hoc run of the same 24h
// result sweep the midnight job performs on its own schedule.
func (s *Scheduler) Results(ctx context.Context) error {
	return s.Midnight(ctx)
}

// ResultsAll runs the bulk result backfill over the entire history of
// events lacking a result.
func (s *Scheduler) ResultsAll(ctx context.Context) error {
	return s.runJob(ctx, jobResultsAll, s.runResultsAllTick)
}

// FinalOddsAll runs the bulk final-odds backfill.
func (s *Scheduler) FinalOddsAll(ctx context.Context) error {
	return s.runJob(ctx, jobFinalOddsAll, s.runFinalOddsAllTick)
}

// AlertsDryRun runs the matcher over every event currently within the
// pre-start window that already has a captured final triple, without
// publishing to the notifier — the `alerts` CLI verb's dry run.
func (s *Scheduler) AlertsDryRun(ctx context.Context) ([]*models.Verdict, error) {
	lock := s.jobLocks[jobAlerts]
	if !lock.TryLock() {
		return nil, fmt.Errorf("alerts dry run: a previous run is still in progress")
	}
	defer lock.Unlock()

	start := time.Now()
	events, err := s.events.ListInPreStartWindow(ctx, s.cfg.PreStartWindowMinutes)
	if err != nil {
		metrics.RecordSchedulerTick(jobAlerts, "error")
		return nil, fmt.Errorf("list events in pre-start window: %w", err)
	}

	verdicts := make([]*models.Verdict, 0, len(events))
	for _, e := range events {
		o, err := s.odds.GetByEventID(ctx, e.ID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			metrics.RecordSchedulerTick(jobAlerts, "error")
			return nil, fmt.Errorf("load odds for event %d: %w", e.ID, err)
		}
		if o.VarOne == nil || o.VarTwo == nil {
			continue
		}

		v, err := s.evaluate(ctx, e, o)
		if err != nil {
			metrics.RecordSchedulerTick(jobAlerts, "error")
			return nil, fmt.Errorf("evaluate event %d: %w", e.ID, err)
		}
		verdicts = append(verdicts, v)
	}

	metrics.RecordSchedulerJobDuration(jobAlerts, time.Since(start).Seconds())
	metrics.RecordSchedulerTick(jobAlerts, "ok")
	return verdicts, nil
}

// RefreshAlerts forces a refresh of the alert-eligible materialized
// view, the `refresh-alerts` CLI verb.
func (s *Scheduler) RefreshAlerts(ctx context.Context) error {
	if err := s.views.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh alert view: %w", err)
	}
	metrics.SetAlertViewStale(false)
	return nil
}
