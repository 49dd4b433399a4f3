package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	txcontext "lodger/pkg/platform/tx"

	"lodger/internal/billing/models"
	"lodger/internal/sentinel"
)

// PostgresStore persists payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const paymentColumns = `
	id, tenant_id, landlord_id, invoice_id, amount, method, status,
	external_id, session_url, session_expires_at, failure_reason, created_at, completed_at
`

func (s *PostgresStore) Create(ctx context.Context, p *models.Payment) error {
	if p == nil {
		return fmt.Errorf("payment is required")
	}
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.TenantID),
		uuid.UUID(p.LandlordID),
		uuid.UUID(p.InvoiceID),
		p.Amount,
		string(p.Method),
		string(p.Status),
		nullString(p.ExternalID),
		nullString(p.SessionURL),
		p.SessionExpiresAt,
		nullString(p.FailureReason),
		p.CreatedAt,
		p.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conflicting payment: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Payment) error {
	if p == nil {
		return fmt.Errorf("payment is required")
	}
	query := `
		UPDATE payments
		SET status = $2,
			failure_reason = $3,
			completed_at = $4
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		string(p.Status),
		nullString(p.FailureReason),
		p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return requireRowAffected(res, "payment")
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(paymentID)))
}

// FindByExternalIDForUpdate locks the payment carrying the processor's
// session id. Webhook reconciliation depends on this lock.
func (s *PostgresStore) FindByExternalIDForUpdate(ctx context.Context, externalID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_id = $1 FOR UPDATE`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, externalID))
}

func (s *PostgresStore) FindPendingByInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE invoice_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(invoiceID)))
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.UserID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tenant_id = $1 ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(tenantID))
}

func (s *PostgresStore) ListByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE landlord_id = $1 ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(landlordID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*models.Payment, error) {
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) scanMany(ctx context.Context, query string, args ...any) ([]*models.Payment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p             models.Payment
		paymentID     uuid.UUID
		tenantID      uuid.UUID
		landlordID    uuid.UUID
		invoiceID     uuid.UUID
		amount        decimal.Decimal
		method        string
		status        string
		externalID    sql.NullString
		sessionURL    sql.NullString
		failureReason sql.NullString
	)
	err := row.Scan(
		&paymentID, &tenantID, &landlordID, &invoiceID, &amount, &method, &status,
		&externalID, &sessionURL, &p.SessionExpiresAt, &failureReason, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PaymentID(paymentID)
	p.TenantID = id.UserID(tenantID)
	p.LandlordID = id.UserID(landlordID)
	p.InvoiceID = id.InvoiceID(invoiceID)
	p.Amount = amount
	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentStatus(status)
	p.ExternalID = externalID.String
	p.SessionURL = sessionURL.String
	p.FailureReason = failureReason.String
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRowAffected(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s does not exist: %w", entity, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
