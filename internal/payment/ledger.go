package payment

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger result statuses recorded against processed events.
const (
	ResultProcessed = "PROCESSED"
	ResultSkipped   = "SKIPPED"
	ResultFailed    = "FAILED"
)

// EventLedger is the durable record of gateway event ids already seen. It
// turns at-least-once webhook delivery into exactly-once application of the
// order transition.
type EventLedger interface {
	// Record inserts the event id; false means it was already there and the
	// delivery is a duplicate.
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	SetResult(ctx context.Context, eventID, status string) error
}

// PgEventLedger backs EventLedger with the webhook_events table. The primary
// key makes two concurrent deliveries of the same event race safely: the
// loser's insert affects zero rows.
type PgEventLedger struct {
	DB *pgxpool.Pool
}

func (l *PgEventLedger) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	ct, err := l.DB.Exec(ctx, `
		INSERT INTO webhook_events (gateway_event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (gateway_event_id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (l *PgEventLedger) SetResult(ctx context.Context, eventID, status string) error {
	_, err := l.DB.Exec(ctx,
		`UPDATE webhook_events SET result_status=$2 WHERE gateway_event_id=$1`, eventID, status)
	return err
}
