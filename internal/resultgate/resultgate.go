// Package resultgate decides when a Result may be requested for an
// event and writes it idempotently once the upstream reports a terminal
// status, per §4.4.
package resultgate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/repository"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// terminalStatusCodes are upstream status codes that carry a final score.
var terminalStatusCodes = map[int]bool{
	100: true, 110: true, 92: true, 120: true, 130: true, 140: true,
}

// cancellationStatusCodes mark the event terminal with no score.
var cancellationStatusCodes = map[int]bool{
	70: true, 80: true, 90: true,
}

// Gate implements the result-ingestion gate.
type Gate struct {
	results repository.ResultRepository
	events  repository.EventRepository
	rules   *sportrules.Table
	log     *logrus.Logger
}

// NewGate builds a result gate.
func NewGate(results repository.ResultRepository, events repository.EventRepository, rules *sportrules.Table, log *logrus.Logger) *Gate {
	return &Gate{results: results, events: events, rules: rules, log: log}
}

// ShouldRequest reports whether a result may be requested for e at time
// now, i.e. now >= start_time + sport_cutoff.
func (g *Gate) ShouldRequest(e *models.Event, now time.Time) bool {
	cutoff := g.rules.Cutoff(e.Sport)
	return !now.Before(e.StartTimeUTC.Add(cutoff))
}

// Outcome is the disposition of one event after Ingest runs.
type Outcome string

const (
	OutcomeWritten    Outcome = "written"
	OutcomeSkipped    Outcome = "skipped"    // already has a result, or not yet eligible
	OutcomeCancelled  Outcome = "cancelled"  // upstream reported a cancellation code
	OutcomeNotFinal   Outcome = "not_final"  // upstream status is not yet terminal
)

// Ingest fetches the event's detail and, if terminal, writes its Result.
// It is idempotent: calling it again after a Result already exists is a
// no-op. Cancellation codes mark the event terminal with no Result row.
func (g *Gate) Ingest(ctx context.Context, e *models.Event, detail *upstream.EventDetail) (Outcome, *models.Result, error) {
	if exists, err := g.results.Exists(ctx, e.ID); err != nil {
		return OutcomeSkipped, nil, fmt.Errorf("check existing result for event %d: %w", e.ID, err)
	} else if exists {
		return OutcomeSkipped, nil, nil
	}

	if cancellationStatusCodes[detail.StatusCode] {
		if err := g.events.MarkStatus(ctx, e.ID, models.StatusCancelled); err != nil {
			return OutcomeCancelled, nil, fmt.Errorf("mark event %d cancelled: %w", e.ID, err)
		}
		if g.log != nil {
			g.log.WithFields(logrus.Fields{"event_id": e.ID, "status_code": detail.StatusCode}).Info("result gate: event cancelled")
		}
		return OutcomeCancelled, nil, nil
	}

	if !terminalStatusCodes[detail.StatusCode] {
		return OutcomeNotFinal, nil, nil
	}

	if detail.HomeScore == nil || detail.AwayScore == nil {
		return OutcomeNotFinal, nil, nil
	}

	hasDraw := g.rules.HasDraw(e.Sport)
	result := models.NewResult(e.ID, *detail.HomeScore, *detail.AwayScore, hasDraw, time.Now().UTC())

	written, err := g.results.Insert(ctx, &result)
	if err != nil {
		return OutcomeSkipped, nil, fmt.Errorf("insert result for event %d: %w", e.ID, err)
	}
	if !written {
		// Another tick won the race; first write wins per §7.
		return OutcomeSkipped, nil, nil
	}

	if err := g.events.MarkStatus(ctx, e.ID, models.StatusFinished); err != nil {
		return OutcomeWritten, &result, fmt.Errorf("mark event %d finished: %w", e.ID, err)
	}

	if g.log != nil {
		g.log.WithFields(logrus.Fields{
			"event_id": e.ID, "home_score": result.HomeScore, "away_score": result.AwayScore,
			"winner_side": result.WinnerSide, "point_diff": result.PointDiff,
		}).Info("result gate: wrote result")
	}
	return OutcomeWritten, &result, nil
}

// BackfillStats tallies the disposition of a bulk Ingest pass, recovered
// from the original scheduler's updated/skipped/failed counters.
type BackfillStats struct {
	Updated int
	Skipped int
	Failed  int
}

// Fetcher is the subset of the upstream client the gate needs to fetch an
// event's current detail; kept narrow so resultgate does not depend on
// the full upstream.Client surface.
type Fetcher interface {
	FetchEventDetail(ctx context.Context, eventID int64) (*upstream.EventDetail, error)
}

// IngestAll runs Ingest over every event in events, tallying stats.
// Each event is a fault boundary: a failure on one event is recorded and
// does not abort the rest of the batch, per §7's propagation policy.
func (g *Gate) IngestAll(ctx context.Context, fetcher Fetcher, events []*models.Event, now time.Time) BackfillStats {
	var stats BackfillStats
	for _, e := range events {
		if !g.ShouldRequest(e, now) {
			stats.Skipped++
			continue
		}

		detail, err := fetcher.FetchEventDetail(ctx, e.ID)
		if err != nil {
			if g.log != nil {
				g.log.WithError(err).WithField("event_id", e.ID).Warn("result gate: fetch failed")
			}
			stats.Failed++
			continue
		}

		outcome, _, err := g.Ingest(ctx, e, detail)
		if err != nil {
			if g.log != nil {
				g.log.WithError(err).WithField("event_id", e.ID).Warn("result gate: ingest failed")
			}
			stats.Failed++
			continue
		}

		switch outcome {
		case OutcomeWritten:
			stats.Updated++
		default:
			stats.Skipped++
		}
	}
	return stats
}
