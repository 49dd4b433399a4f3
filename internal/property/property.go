// Package property holds the minimal property directory backing lease
// ownership checks. Full property CRUD lives outside this service.
package property

import (
	"context"
	"time"

	id "lodger/pkg/domain"
)

type Property struct {
	ID         id.PropertyID `json:"id"`
	LandlordID id.UserID     `json:"landlord_id"`
	Name       string        `json:"name"`
	Address    string        `json:"address"`
	UnitIDs    []id.UnitID   `json:"unit_ids,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// HasUnit reports whether the unit belongs to this property.
func (p *Property) HasUnit(unitID id.UnitID) bool {
	for _, u := range p.UnitIDs {
		if u == unitID {
			return true
		}
	}
	return false
}

// Store persists the property directory.
type Store interface {
	Create(ctx context.Context, p *Property) error
	FindByID(ctx context.Context, propertyID id.PropertyID) (*Property, error)
}

// Directory answers ownership questions for the lease service.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// Get returns the property, or a store error if it does not exist.
func (d *Directory) Get(ctx context.Context, propertyID id.PropertyID) (*Property, error) {
	return d.store.FindByID(ctx, propertyID)
}

// Owns reports whether the landlord owns the property.
func (d *Directory) Owns(ctx context.Context, landlordID id.UserID, propertyID id.PropertyID) (bool, error) {
	p, err := d.store.FindByID(ctx, propertyID)
	if err != nil {
		return false, err
	}
	return p.LandlordID == landlordID, nil
}
