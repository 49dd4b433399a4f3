package lease

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

	"lodger/internal/lease/models"
	"lodger/internal/sentinel"
)

// PostgresStore persists leases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed lease store.
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

const leaseColumns = `
	id, tenant_id, landlord_id, property_id, unit_id, start_date, end_date,
	rent_amount, security_deposit, terms, status, is_renewal, previous_lease_id,
	accepted_at, rejection_reason, terminated_at, termination_reason, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, l *models.Lease) error {
	if l == nil {
		return fmt.Errorf("lease is required")
	}
	query := `
		INSERT INTO leases (` + leaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(l.ID),
		uuid.UUID(l.TenantID),
		uuid.UUID(l.LandlordID),
		uuid.UUID(l.PropertyID),
		nullUnitID(l.UnitID),
		l.StartDate,
		l.EndDate,
		l.RentAmount,
		l.SecurityDeposit,
		l.Terms,
		string(l.Status),
		l.IsRenewal,
		nullLeaseID(l.PreviousLeaseID),
		l.AcceptedAt,
		l.RejectionReason,
		l.TerminatedAt,
		l.TerminationReason,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conflicting lease: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("create lease: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(leaseID)))
}

// FindByIDForUpdate locks the lease row for the duration of the enclosing
// transaction, preventing lost updates when a webhook and a user action race.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = $1 FOR UPDATE`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(leaseID)))
}

func (s *PostgresStore) Update(ctx context.Context, l *models.Lease) error {
	if l == nil {
		return fmt.Errorf("lease is required")
	}
	query := `
		UPDATE leases
		SET status = $2,
			accepted_at = $3,
			rejection_reason = $4,
			terminated_at = $5,
			termination_reason = $6,
			updated_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(l.ID),
		string(l.Status),
		l.AcceptedAt,
		l.RejectionReason,
		l.TerminatedAt,
		l.TerminationReason,
		l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conflicting lease: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("update lease: %w", err)
	}
	return requireRowAffected(res, "lease")
}

func (s *PostgresStore) Delete(ctx context.Context, leaseID id.LeaseID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM leases WHERE id = $1`, uuid.UUID(leaseID))
	if err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	return requireRowAffected(res, "lease")
}

func (s *PostgresStore) FindActiveForUnit(ctx context.Context, propertyID id.PropertyID, unitID *id.UnitID) (*models.Lease, error) {
	query := `
		SELECT ` + leaseColumns + `
		FROM leases
		WHERE property_id = $1
		  AND status = 'active'
		  AND unit_id IS NOT DISTINCT FROM $2
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(propertyID), nullUnitID(unitID)))
}

func (s *PostgresStore) ListByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE landlord_id = $1 ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(landlordID))
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.UserID) ([]*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE tenant_id = $1 ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(tenantID))
}

func (s *PostgresStore) ListActiveByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE landlord_id = $1 AND status = 'active' ORDER BY created_at DESC`
	return s.scanMany(ctx, query, uuid.UUID(landlordID))
}

func (s *PostgresStore) ListActiveEndingBefore(ctx context.Context, cutoff time.Time) ([]*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE status = 'active' AND end_date < $1 ORDER BY end_date`
	return s.scanMany(ctx, query, cutoff)
}

func (s *PostgresStore) CountForTenantProperty(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (int, error) {
	query := `SELECT COUNT(*) FROM leases WHERE tenant_id = $1 AND property_id = $2`
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(propertyID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count leases: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*models.Lease, error) {
	l, err := scanLease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lease: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) scanMany(ctx context.Context, query string, args ...any) ([]*models.Lease, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []*models.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLease(row rowScanner) (*models.Lease, error) {
	var (
		l                 models.Lease
		leaseID           uuid.UUID
		tenantID          uuid.UUID
		landlordID        uuid.UUID
		propertyID        uuid.UUID
		unitID            uuid.NullUUID
		rent, deposit     decimal.Decimal
		previousLeaseID   uuid.NullUUID
		terms             sql.NullString
		rejectionReason   sql.NullString
		terminationReason sql.NullString
		status            string
	)
	err := row.Scan(
		&leaseID, &tenantID, &landlordID, &propertyID, &unitID,
		&l.StartDate, &l.EndDate, &rent, &deposit, &terms, &status,
		&l.IsRenewal, &previousLeaseID, &l.AcceptedAt, &rejectionReason,
		&l.TerminatedAt, &terminationReason, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.ID = id.LeaseID(leaseID)
	l.TenantID = id.UserID(tenantID)
	l.LandlordID = id.UserID(landlordID)
	l.PropertyID = id.PropertyID(propertyID)
	if unitID.Valid {
		u := id.UnitID(unitID.UUID)
		l.UnitID = &u
	}
	l.RentAmount = rent
	l.SecurityDeposit = deposit
	l.Terms = terms.String
	l.Status = models.LeaseStatus(status)
	if previousLeaseID.Valid {
		p := id.LeaseID(previousLeaseID.UUID)
		l.PreviousLeaseID = &p
	}
	l.RejectionReason = rejectionReason.String
	l.TerminationReason = terminationReason.String
	return &l, nil
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
