package models

import "time"

// WinnerSide is the outcome side of a finished event.
type WinnerSide string

const (
	WinnerHome WinnerSide = "1"
	WinnerDraw WinnerSide = "X"
	WinnerAway WinnerSide = "2"
)

// Result is the immutable outcome of a finished event.
type Result struct {
	EventID     int64      `db:"event_id" json:"event_id" validate:"required"`
	HomeScore   int        `db:"home_score" json:"home_score" validate:"gte=0"`
	AwayScore   int        `db:"away_score" json:"away_score" validate:"gte=0"`
	WinnerSide  WinnerSide `db:"winner_side" json:"winner_side"`
	PointDiff   int        `db:"point_diff" json:"point_diff" validate:"gte=0"`
	CollectedAt time.Time  `db:"collected_at" json:"collected_at" validate:"required"`
}

// NewResult derives WinnerSide and PointDiff from the scoreline.
// hasDraw controls whether an equal score yields WinnerDraw or is left
// unresolved (sports without draws never reach equal-score terminal
// states in practice, but the gate does not assume this).
func NewResult(eventID int64, home, away int, hasDraw bool, collectedAt time.Time) Result {
	r := Result{
		EventID:     eventID,
		HomeScore:   home,
		AwayScore:   away,
		CollectedAt: collectedAt,
	}
	switch {
	case home > away:
		r.WinnerSide = WinnerHome
		r.PointDiff = home - away
	case away > home:
		r.WinnerSide = WinnerAway
		r.PointDiff = away - home
	default:
		r.PointDiff = 0
		if hasDraw {
			r.WinnerSide = WinnerDraw
		}
	}
	return r
}
