package normalize

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// Normalizer converts raw upstream documents into persisted models,
// mirroring the teacher's DataNormalizer shape (logger-carrying struct,
// one Normalize* method per source document kind).
type Normalizer struct {
	log *logrus.Logger
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer(log *logrus.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// NormalizeEvent converts a discovery catalog entry into a persisted
// Event, canonicalizing participant names.
func (n *Normalizer) NormalizeEvent(entry upstream.DiscoveryEntry) *models.Event {
	var customID *string
	if entry.CustomID != "" {
		customID = &entry.CustomID
	}
	var country *string
	if entry.Country != "" {
		country = &entry.Country
	}
	var groundType *string
	if entry.GroundType != "" {
		groundType = &entry.GroundType
	}
	home := Name(entry.HomeTeam)
	away := Name(entry.AwayTeam)
	return &models.Event{
		ID:           entry.EventID,
		CustomID:     customID,
		Slug:         entry.Slug,
		StartTimeUTC: entry.StartTime.UTC(),
		Sport:        sportrules.ClassifyTennis(entry.Sport, home, away),
		Competition:  entry.Competition,
		Country:      country,
		GroundType:   groundType,
		HomeTeam:     home,
		AwayTeam:     away,
		Status:       models.StatusScheduled,
	}
}

// NormalizeOpening builds the opening half of an OddsRecord from a
// discovery entry's initial market block. Returns ErrNoOdds if no
// market matches the sport's arity — the caller skips odds persistence
// for this event but still records the discovery.
func (n *Normalizer) NormalizeOpening(eventID int64, markets []upstream.MarketBlock, hasDraw bool, capturedAt time.Time) (*models.OddsRecord, error) {
	triple, err := NormalizeTriple(markets, hasDraw)
	if err != nil {
		if n.log != nil {
			n.log.WithError(err).WithField("event_id", eventID).Warn("no opening odds")
		}
		return nil, err
	}
	return &models.OddsRecord{
		EventID:        eventID,
		Market:         models.Market1X2,
		OneOpen:        &triple.One,
		XOpen:          triple.X,
		TwoOpen:        &triple.Two,
		OpenCapturedAt: &capturedAt,
	}, nil
}

// NormalizeFinals builds the final triple and the derived variation for
// an existing OddsRecord at a checkpoint.
func (n *Normalizer) NormalizeFinals(existing *models.OddsRecord, markets []upstream.MarketBlock, hasDraw bool, capturedAt time.Time) error {
	triple, err := NormalizeTriple(markets, hasDraw)
	if err != nil {
		if n.log != nil {
			n.log.WithError(err).WithField("event_id", existing.EventID).Warn("no final odds at checkpoint")
		}
		return err
	}
	existing.ApplyFinals(&triple.One, triple.X, &triple.Two, capturedAt)
	return nil
}

// NormalizeSnapshot builds an immutable OddsSnapshot row for the
// recovered per-capture history.
func (n *Normalizer) NormalizeSnapshot(eventID int64, markets []upstream.MarketBlock, hasDraw bool, capturedAt time.Time, rawJSON string) (*models.OddsSnapshot, error) {
	triple, err := NormalizeTriple(markets, hasDraw)
	if err != nil {
		return nil, err
	}
	return &models.OddsSnapshot{
		EventID:       eventID,
		CollectedAt:   capturedAt,
		Market:        models.Market1X2,
		One:           triple.One,
		X:             triple.X,
		Two:           triple.Two,
		RawFractional: rawJSON,
	}, nil
}
