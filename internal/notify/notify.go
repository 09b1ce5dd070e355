// Package notify implements the Notifier (C10): best-effort email delivery
// on job completion/failure. Failure to send never affects job state —
// every error from this package is logged at WARN and swallowed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrichloop/core/internal/worker"
	"github.com/enrichloop/core/pkg/mailer"
)

// Preference is the optional per-tenant row consulted on every terminal
// event (§3's NotificationPreference).
type Preference struct {
	TenantID         string
	Email            string
	NotifyOnComplete bool
	NotifyOnFail     bool
}

// Sender is the narrow view of *mailer.Mailer the notifier needs.
type Sender interface {
	SendRaw(ctx context.Context, email *mailer.Email) error
}

// Notifier implements worker.EventSink. OnProgress is a no-op; only
// terminal events trigger a lookup and, if applicable, an email.
type Notifier struct {
	pool   *pgxpool.Pool
	mail   Sender
	logger *slog.Logger
}

// New constructs a Notifier. mail may be nil, in which case OnTerminal is a
// no-op — this is the "RESEND_API_KEY unset" case from §6's environment
// keys, where the composition root wires no Sender at all.
func New(pool *pgxpool.Pool, mail Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pool: pool, mail: mail, logger: logger}
}

// OnProgress is a no-op; the Notifier only reacts to terminal events.
func (n *Notifier) OnProgress(_ worker.ProgressEvent) {}

// OnTerminal looks up the tenant's notification preference and, if the
// tenant opted in for this outcome, sends a plain-text status email.
// Errors are logged at WARN and otherwise swallowed (§4.10).
func (n *Notifier) OnTerminal(event worker.TerminalEvent) {
	if n.mail == nil {
		return
	}

	pref, err := n.preference(context.Background(), event.TenantID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			n.logger.Warn("notify: failed to load preference",
				slog.String("tenant_id", event.TenantID), slog.Any("error", err))
		}
		return
	}

	if pref.Email == "" {
		return
	}
	if (event.Status == "completed" && !pref.NotifyOnComplete) ||
		(event.Status == "failed" && !pref.NotifyOnFail) {
		return
	}

	email := &mailer.Email{
		To:      []string{pref.Email},
		Subject: fmt.Sprintf("Enrichment job %s", event.Status),
		Text:    renderBody(event),
		HTML:    renderBody(event),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := n.mail.SendRaw(ctx, email); err != nil {
		n.logger.Warn("notify: send failed",
			slog.String("job_id", event.JobID), slog.Any("error", err))
	}
}

func (n *Notifier) preference(ctx context.Context, tenant string) (Preference, error) {
	const q = `
		SELECT tenant_id, coalesce(email, ''), notify_on_complete, notify_on_fail
		FROM notification_preferences
		WHERE tenant_id = $1`

	var p Preference
	err := n.pool.QueryRow(ctx, q, tenant).Scan(&p.TenantID, &p.Email, &p.NotifyOnComplete, &p.NotifyOnFail)
	return p, err
}

// renderBody builds the notifier's built-in plain-text template. No
// markdown/HTML renderer has a home here (§4.10): the message is short
// and fixed-shape, so text/template from pkg/mailer's own Send path would
// be overkill for a single fire-and-forget line.
func renderBody(event worker.TerminalEvent) string {
	return fmt.Sprintf("Enrichment job %s has %s.\n\nJob ID: %s\n", event.JobID, event.Status, event.JobID)
}
