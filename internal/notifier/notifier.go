// Package notifier delivers matcher verdicts to Telegram, splitting long
// reports on candidate boundaries and retrying failed deliveries with
// the same backoff policy as the upstream client.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/models"
)

// maxMessageLength is the notification-channel bound from §4.5: longer
// reports are split on candidate boundaries rather than truncated.
const maxMessageLength = 4000

// backoff schedule mirrors the upstream client's default retry policy
// (§4.2): exponential starting at 1s (capped at 30s), 3 retries after
// the first attempt.
var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Sender is the subset of tgbotapi.BotAPI the notifier exercises, kept
// narrow so tests can substitute a fake without a live bot token.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier renders and delivers verdicts. It still renders and logs via
// its logger even when disabled, per §6 ("verdicts still computed and
// logged") — the Telegram delivery is the only thing the enabled flag
// gates.
type Notifier struct {
	sender  Sender
	chatID  int64
	enabled bool
	log     *logrus.Logger
}

// NewNotifier builds a Notifier. sender may be nil when enabled is
// false — no delivery is ever attempted in that case.
func NewNotifier(sender Sender, chatID int64, enabled bool, log *logrus.Logger) *Notifier {
	return &Notifier{sender: sender, chatID: chatID, enabled: enabled, log: log}
}

// NewTelegramSender constructs a tgbotapi.BotAPI-backed Sender from a
// bot token, verifying connectivity with GetMe the way the teacher's
// TelegramNotifier does at construction time.
func NewTelegramSender(token string) (Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false
	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("verify telegram bot credentials: %w", err)
	}
	return bot, nil
}

// Deliver renders v and sends it to Telegram (if enabled), retrying
// transient failures under backoffSchedule. It never returns an error
// that should abort the scheduler tick — per §7, delivery failure is
// logged and dropped on exhaustion.
func (n *Notifier) Deliver(ctx context.Context, v *models.Verdict) {
	if v.Status == models.StatusNoCandidates {
		if n.log != nil {
			n.log.WithField("event_id", v.EventID).Debug("notifier: no candidates, not delivering")
		}
		return
	}

	parts := Render(v)

	if n.log != nil {
		n.log.WithFields(logrus.Fields{
			"event_id": v.EventID, "status": v.Status, "result_tier": v.ResultTier,
			"confidence": v.Confidence, "candidates": len(v.Candidates),
		}).Info("notifier: verdict rendered")
	}

	if !n.enabled {
		if n.log != nil {
			n.log.WithField("event_id", v.EventID).Debug("notifier: notifications disabled, not delivering")
		}
		return
	}

	for i, part := range parts {
		if err := n.sendWithRetry(ctx, part); err != nil {
			if n.log != nil {
				n.log.WithError(err).WithFields(logrus.Fields{
					"event_id": v.EventID, "part": i + 1, "parts": len(parts),
				}).Warn("notifier: delivery failed, dropping")
			}
			return
		}
	}
}

func (n *Notifier) sendWithRetry(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)

	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}
		if _, err := n.sender.Send(msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("telegram send exhausted retries: %w", lastErr)
}

// Render renders a verdict into one or more message bodies, each within
// maxMessageLength, split on candidate boundaries.
func Render(v *models.Verdict) []string {
	header := renderHeader(v)
	if len(v.Candidates) == 0 {
		return []string{header}
	}

	var parts []string
	current := header
	for _, c := range v.Candidates {
		line := renderCandidate(c)
		if len(current)+len(line)+1 > maxMessageLength {
			parts = append(parts, current)
			current = line
			continue
		}
		current += "\n" + line
	}
	parts = append(parts, current)
	return parts
}

func renderHeader(v *models.Verdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s vs %s (%s)\n", v.Home, v.Away, v.Competition)
	fmt.Fprintf(&b, "sport: %s, status: %s\n", v.Sport, v.Status)
	fmt.Fprintf(&b, "variation: Δ1=%s ΔX=%s Δ2=%s\n", v.VarOne.String(), varXString(v.VarX), v.VarTwo.String())
	if v.Status == models.StatusSuccess {
		fmt.Fprintf(&b, "tier %s/%s, confidence %d%%, prediction: winner=%s point_diff=%d\n",
			v.VariationTier, v.ResultTier, v.Confidence, v.PredictedSide, v.PredictedDiff)
	}
	return b.String()
}

func varXString(x *decimal.Decimal) string {
	if x == nil {
		return "-"
	}
	return x.String()
}

func renderCandidate(c models.Candidate) string {
	return fmt.Sprintf("  - %s vs %s (%s): %s/%d, symmetric=%t", c.Home, c.Away, c.Competition, c.WinnerSide, c.PointDiff, c.Symmetric)
}
