package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	txcontext "lodger/pkg/platform/tx"

	"lodger/internal/sentinel"
	"lodger/internal/webhook/models"
)

// PostgresStore persists processed external events in PostgreSQL. The
// UNIQUE constraint on event_id carries the idempotency guarantee.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Record(ctx context.Context, evt *models.ProcessedEvent) error {
	if evt == nil {
		return fmt.Errorf("event is required")
	}
	query := `
		INSERT INTO processed_external_events (event_id, event_type, received_at, processed_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		evt.EventID,
		evt.EventType,
		evt.ReceivedAt,
		evt.ProcessedAt,
		[]byte(evt.Payload),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event already processed: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) error {
	query := `UPDATE processed_external_events SET processed_at = $2 WHERE event_id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, eventID, processedAt)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, eventID string) (*models.ProcessedEvent, error) {
	query := `
		SELECT event_id, event_type, received_at, processed_at, payload
		FROM processed_external_events
		WHERE event_id = $1
	`
	var (
		evt     models.ProcessedEvent
		payload []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, eventID).
		Scan(&evt.EventID, &evt.EventType, &evt.ReceivedAt, &evt.ProcessedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	evt.Payload = payload
	return &evt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
