// Package models holds the persisted entities of the odds-pattern
// prediction engine: events, their odds, and their results.
package models

import "time"

// EventStatus is the lifecycle state of an Event as reported upstream.
type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusLive      EventStatus = "live"
	StatusFinished  EventStatus = "finished"
	StatusCancelled EventStatus = "cancelled"
)

// Event is a scheduled sporting contest, keyed by the upstream's opaque id.
type Event struct {
	ID            int64       `db:"id" json:"id" validate:"required"`
	CustomID      *string     `db:"custom_id" json:"custom_id"`
	Slug          string      `db:"slug" json:"slug" validate:"required"`
	StartTimeUTC  time.Time   `db:"start_time_utc" json:"start_time_utc" validate:"required"`
	Sport         string      `db:"sport" json:"sport" validate:"required"`
	Competition   string      `db:"competition" json:"competition" validate:"required"`
	Country       *string     `db:"country" json:"country"`
	GroundType    *string     `db:"ground_type" json:"ground_type"`
	HomeTeam      string      `db:"home_team" json:"home_team" validate:"required"`
	AwayTeam      string      `db:"away_team" json:"away_team" validate:"required"`
	Status        EventStatus `db:"status" json:"status" validate:"required"`
	LastCheckedAt time.Time   `db:"last_checked_at" json:"last_checked_at"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// MinutesToStart returns the rounded number of minutes from now until
// StartTimeUTC. Negative once the event has started.
func (e *Event) MinutesToStart(now time.Time) int {
	return int(e.StartTimeUTC.Sub(now).Round(time.Minute) / time.Minute)
}

// IsTerminal reports whether the event has reached a non-reversible
// lifecycle state.
func (e *Event) IsTerminal() bool {
	return e.Status == StatusFinished || e.Status == StatusCancelled
}

// IsDoubles reports whether both participant names carry a '/' separator,
// the recovered tennis-doubles sub-classification rule.
func (e *Event) IsDoubles() bool {
	return containsSlash(e.HomeTeam) && containsSlash(e.AwayTeam)
}

func containsSlash(name string) bool {
	for _, r := range name {
		if r == '/' {
			return true
		}
	}
	return false
}
