package models

// LeaseStatus is a closed set of lease lifecycle states.
type LeaseStatus string

const (
	LeaseStatusPending    LeaseStatus = "pending"
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusRejected   LeaseStatus = "rejected"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusExpired    LeaseStatus = "expired"
	LeaseStatusRenewed    LeaseStatus = "renewed"
)

// leaseTransitions is the single source of truth for transition legality.
// Handlers and services never compare status strings directly.
var leaseTransitions = map[LeaseStatus]map[LeaseStatus]bool{
	LeaseStatusPending: {
		LeaseStatusActive:   true,
		LeaseStatusRejected: true,
	},
	LeaseStatusActive: {
		LeaseStatusTerminated: true,
		LeaseStatusExpired:    true,
		LeaseStatusRenewed:    true,
	},
}

// CanTransition reports whether moving from s to target is legal.
func (s LeaseStatus) CanTransition(target LeaseStatus) bool {
	return leaseTransitions[s][target]
}

// IsTerminal reports whether no further transitions are possible from s.
func (s LeaseStatus) IsTerminal() bool {
	return len(leaseTransitions[s]) == 0
}

// ValidLeaseStatus reports whether s names a known status.
func ValidLeaseStatus(s LeaseStatus) bool {
	switch s {
	case LeaseStatusPending, LeaseStatusActive, LeaseStatusRejected,
		LeaseStatusTerminated, LeaseStatusExpired, LeaseStatusRenewed:
		return true
	}
	return false
}

// OccupancyStatus tracks the derived tenant-property association state.
type OccupancyStatus string

const (
	OccupancyStatusPending  OccupancyStatus = "pending"
	OccupancyStatusActive   OccupancyStatus = "active"
	OccupancyStatusInactive OccupancyStatus = "inactive"
)
