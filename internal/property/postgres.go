package property

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "lodger/pkg/domain"

	"lodger/internal/sentinel"
)

// PostgresStore persists the property directory in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed property store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *Property) error {
	if p == nil {
		return fmt.Errorf("property is required")
	}
	unitIDs, err := json.Marshal(p.UnitIDs)
	if err != nil {
		return fmt.Errorf("marshal unit ids: %w", err)
	}
	query := `
		INSERT INTO properties (id, landlord_id, name, address, unit_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.LandlordID),
		p.Name,
		p.Address,
		unitIDs,
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("property already exists: %w", sentinel.ErrDuplicate)
		}
		return fmt.Errorf("create property: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, propertyID id.PropertyID) (*Property, error) {
	query := `
		SELECT id, landlord_id, name, address, unit_ids, created_at
		FROM properties
		WHERE id = $1
	`
	var (
		p        Property
		pid, lid uuid.UUID
		unitIDs  []byte
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(propertyID)).Scan(
		&pid, &lid, &p.Name, &p.Address, &unitIDs, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find property: %w", err)
	}
	p.ID = id.PropertyID(pid)
	p.LandlordID = id.UserID(lid)
	if len(unitIDs) > 0 {
		if err := json.Unmarshal(unitIDs, &p.UnitIDs); err != nil {
			return nil, fmt.Errorf("unmarshal unit ids: %w", err)
		}
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
