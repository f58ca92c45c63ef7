package domain

import "slices"

// Status is the account state a principal can be in. Only active principals
// are issued tokens.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusPending   Status = "PENDING"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// Well known authorities.
const (
	AuthorityUser  = "USER"
	AuthorityAdmin = "ADMIN"
)

// Principal is the authenticated identity carried in tokens.
type Principal struct {
	SubjectID   string   `json:"sub"`
	Authorities []string `json:"authorities"`
	Status      Status   `json:"status"`
}

func (p Principal) HasAuthority(a string) bool {
	return slices.Contains(p.Authorities, a)
}

func (p Principal) Active() bool { return p.Status == StatusActive }
