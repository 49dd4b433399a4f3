package occupancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	txcontext "lodger/pkg/platform/tx"

	"lodger/internal/lease/models"
)

// PostgresStore persists occupancies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed occupancy store.
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

const occupancyColumns = `
	id, tenant_id, property_id, unit_id, rent_amount, status, start_date, end_date,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, o *models.Occupancy) error {
	if o == nil {
		return fmt.Errorf("occupancy is required")
	}
	query := `
		INSERT INTO tenant_occupancies (` + occupancyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID),
		uuid.UUID(o.TenantID),
		uuid.UUID(o.PropertyID),
		nullUnitID(o.UnitID),
		o.RentAmount,
		string(o.Status),
		o.StartDate,
		o.EndDate,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create occupancy: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, o *models.Occupancy) error {
	if o == nil {
		return fmt.Errorf("occupancy is required")
	}
	query := `
		UPDATE tenant_occupancies
		SET rent_amount = $2,
			status = $3,
			start_date = $4,
			end_date = $5,
			updated_at = $6
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID),
		o.RentAmount,
		string(o.Status),
		o.StartDate,
		o.EndDate,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update occupancy: %w", err)
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

func (s *PostgresStore) Delete(ctx context.Context, occupancyID id.OccupancyID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM tenant_occupancies WHERE id = $1`, uuid.UUID(occupancyID))
	if err != nil {
		return fmt.Errorf("delete occupancy: %w", err)
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

func (s *PostgresStore) FindByTenantAndUnit(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID, unitID *id.UnitID) (*models.Occupancy, error) {
	query := `
		SELECT ` + occupancyColumns + `
		FROM tenant_occupancies
		WHERE tenant_id = $1
		  AND property_id = $2
		  AND unit_id IS NOT DISTINCT FROM $3
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(propertyID), nullUnitID(unitID)))
}

func (s *PostgresStore) FindCurrent(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (*models.Occupancy, error) {
	query := `
		SELECT ` + occupancyColumns + `
		FROM tenant_occupancies
		WHERE tenant_id = $1
		  AND property_id = $2
		  AND status IN ('pending', 'active')
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(propertyID)))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Occupancy, error) {
	var (
		o          models.Occupancy
		occID      uuid.UUID
		tenantID   uuid.UUID
		propertyID uuid.UUID
		unitID     uuid.NullUUID
		rent       decimal.Decimal
		status     string
	)
	err := row.Scan(
		&occID, &tenantID, &propertyID, &unitID, &rent, &status,
		&o.StartDate, &o.EndDate, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan occupancy: %w", err)
	}
	o.ID = id.OccupancyID(occID)
	o.TenantID = id.UserID(tenantID)
	o.PropertyID = id.PropertyID(propertyID)
	if unitID.Valid {
		u := id.UnitID(unitID.UUID)
		o.UnitID = &u
	}
	o.RentAmount = rent
	o.Status = models.OccupancyStatus(status)
	return &o, nil
}

func nullUnitID(unitID *id.UnitID) uuid.NullUUID {
	if unitID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*unitID), Valid: true}
}
