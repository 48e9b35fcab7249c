package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market1X2 is the market label stored on every OddsRecord and
// OddsSnapshot, for 3-way and 2-way markets alike; the normalizer selects
// a market by its outcome structure, not by its name.
const Market1X2 = "1X2"

// OddsRecord is the single upserted odds row per event: opening and final
// triples plus the derived variation columns. Variation columns are
// computed, never written directly.
type OddsRecord struct {
	EventID         int64            `db:"event_id" json:"event_id" validate:"required"`
	Market          string           `db:"market" json:"market"`
	OneOpen         *decimal.Decimal `db:"one_open" json:"one_open"`
	XOpen           *decimal.Decimal `db:"x_open" json:"x_open"`
	TwoOpen         *decimal.Decimal `db:"two_open" json:"two_open"`
	OneFinal        *decimal.Decimal `db:"one_final" json:"one_final"`
	XFinal          *decimal.Decimal `db:"x_final" json:"x_final"`
	TwoFinal        *decimal.Decimal `db:"two_final" json:"two_final"`
	VarOne          *decimal.Decimal `db:"var_one" json:"var_one"`
	VarX            *decimal.Decimal `db:"var_x" json:"var_x"`
	VarTwo          *decimal.Decimal `db:"var_two" json:"var_two"`
	OpenCapturedAt  *time.Time       `db:"open_captured_at" json:"open_captured_at"`
	FinalCapturedAt *time.Time       `db:"final_captured_at" json:"final_captured_at"`
}

var twoPlaces = decimal.New(1, -2)

// ApplyFinals sets the final triple and recomputes the variation columns.
// A nil open or final component yields a nil variation, never a computed
// zero.
func (o *OddsRecord) ApplyFinals(one, x, two *decimal.Decimal, capturedAt time.Time) {
	o.OneFinal, o.XFinal, o.TwoFinal = one, x, two
	o.FinalCapturedAt = &capturedAt
	o.VarOne = variation(o.OneOpen, o.OneFinal)
	o.VarX = variation(o.XOpen, o.XFinal)
	o.VarTwo = variation(o.TwoOpen, o.TwoFinal)
}

func variation(open, final *decimal.Decimal) *decimal.Decimal {
	if open == nil || final == nil {
		return nil
	}
	v := final.Sub(*open).Truncate(2)
	return &v
}

// HasDraw reports whether this record carries a draw (X) component at all,
// i.e. was captured for a sport supporting draws.
func (o *OddsRecord) HasDraw() bool {
	return o.XOpen != nil || o.XFinal != nil
}

// OddsSnapshot is an immutable append-only capture of the odds triple at a
// point in time, recovered from the original system's per-capture history
// (distinct from the single upserted OddsRecord).
type OddsSnapshot struct {
	SnapshotID     int64           `db:"snapshot_id" json:"snapshot_id"`
	EventID        int64           `db:"event_id" json:"event_id" validate:"required"`
	CollectedAt    time.Time       `db:"collected_at" json:"collected_at" validate:"required"`
	Market         string          `db:"market" json:"market"`
	One            decimal.Decimal `db:"one" json:"one"`
	X              *decimal.Decimal `db:"x" json:"x"`
	Two            decimal.Decimal `db:"two" json:"two"`
	RawFractional  string          `db:"raw_fractional" json:"raw_fractional"`
}
