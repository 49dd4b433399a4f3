package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	txcontext "lodger/pkg/platform/tx"

	"lodger/internal/billing/models"
	"lodger/internal/sentinel"
)

// PostgresStore persists invoices in PostgreSQL.
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

const invoiceColumns = `
	id, tenant_id, landlord_id, property_id, unit_id, lease_id, amount,
	due_date, description, category, status, paid_date, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, inv *models.Invoice) error {
	if inv == nil {
		return fmt.Errorf("invoice is required")
	}
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(inv.ID),
		uuid.UUID(inv.TenantID),
		uuid.UUID(inv.LandlordID),
		uuid.UUID(inv.PropertyID),
		nullUnitID(inv.UnitID),
		nullLeaseID(inv.LeaseID),
		inv.Amount,
		inv.DueDate,
		inv.Description,
		string(inv.Category),
		string(inv.Status),
		inv.PaidDate,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conflicting invoice: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(invoiceID)))
}

// FindByIDForUpdate locks the invoice row for the enclosing transaction.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(invoiceID)))
}

func (s *PostgresStore) Update(ctx context.Context, inv *models.Invoice) error {
	if inv == nil {
		return fmt.Errorf("invoice is required")
	}
	query := `
		UPDATE invoices
		SET amount = $2,
			due_date = $3,
			description = $4,
			status = $5,
			paid_date = $6,
			updated_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(inv.ID),
		inv.Amount,
		inv.DueDate,
		inv.Description,
		string(inv.Status),
		inv.PaidDate,
		inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conflicting invoice: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("update invoice: %w", err)
	}
	return requireRowAffected(res, "invoice")
}

func (s *PostgresStore) Delete(ctx context.Context, invoiceID id.InvoiceID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, uuid.UUID(invoiceID))
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return requireRowAffected(res, "invoice")
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.UserID) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(tenantID))
}

func (s *PostgresStore) ListByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE landlord_id = $1 ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(landlordID))
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY created_at DESC`
	return s.scanMany(ctx, query)
}

func (s *PostgresStore) FindRentForPeriod(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID, dueDate time.Time) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1
		  AND property_id = $2
		  AND category = 'rent'
		  AND due_date = $3
		  AND status <> 'cancelled'
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(propertyID), dueDate))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*models.Invoice, error) {
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) scanMany(ctx context.Context, query string, args ...any) ([]*models.Invoice, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		inv         models.Invoice
		invoiceID   uuid.UUID
		tenantID    uuid.UUID
		landlordID  uuid.UUID
		propertyID  uuid.UUID
		unitID      uuid.NullUUID
		leaseID     uuid.NullUUID
		amount      decimal.Decimal
		description sql.NullString
		category    string
		status      string
	)
	err := row.Scan(
		&invoiceID, &tenantID, &landlordID, &propertyID, &unitID, &leaseID,
		&amount, &inv.DueDate, &description, &category, &status, &inv.PaidDate,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.ID = id.InvoiceID(invoiceID)
	inv.TenantID = id.UserID(tenantID)
	inv.LandlordID = id.UserID(landlordID)
	inv.PropertyID = id.PropertyID(propertyID)
	if unitID.Valid {
		u := id.UnitID(unitID.UUID)
		inv.UnitID = &u
	}
	if leaseID.Valid {
		l := id.LeaseID(leaseID.UUID)
		inv.LeaseID = &l
	}
	inv.Amount = amount
	inv.Description = description.String
	inv.Category = models.InvoiceCategory(category)
	inv.Status = models.InvoiceStatus(status)
	return &inv, nil
}

func nullUnitID(unitID *id.UnitID) uuid.NullUUID {
	if unitID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*unitID), Valid: true}
}

func nullLeaseID(leaseID *id.LeaseID) uuid.NullUUID {
	if leaseID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*leaseID), Valid: true}
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
