// Package conflict implements the conflict store and resolver: detection
// from response codes, persistence, hook dispatch, last-write-wins, and
// manual adjudication.
package conflict

import "time"

// Type is the closed set of conflict classifications.
type Type string

const (
	TypeVersionMismatch Type = "version_mismatch"
	TypeModifiedConflict Type = "modified_conflict"
	TypeDeleteConflict  Type = "delete_conflict"
)

// ResolutionStatus is the closed set of resolution outcomes.
type ResolutionStatus string

const (
	ResolutionPending    ResolutionStatus = "pending"
	ResolutionLocalWins  ResolutionStatus = "local_wins"
	ResolutionServerWins ResolutionStatus = "server_wins"
	ResolutionManual     ResolutionStatus = "manual"
	ResolutionSkip       ResolutionStatus = "skip"
	ResolutionRejected   ResolutionStatus = "rejected"
)

// Valid reports whether r is a resolution a caller may set via ResolveManually.
func (r ResolutionStatus) Valid() bool {
	switch r {
	case ResolutionLocalWins, ResolutionServerWins, ResolutionManual, ResolutionSkip:
		return true
	default:
		return false
	}
}

// Record is one row of conflict_log.
type Record struct {
	ID               int64
	ResourceID       string
	ResourceType     string
	LocalRequestID   *int64
	LocalData        string
	ServerData       string
	ServerVersion    string
	ConflictType     Type
	ResolutionStatus ResolutionStatus
	ResolvedAt       *time.Time
	CreatedAt        time.Time
}
