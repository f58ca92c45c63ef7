package domain

import (
	"slices"
	"time"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // argon2 encoded, empty for accounts created via OAuth2
	Authorities  []string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal projects the user into the identity we put in tokens.
func (u User) Principal() Principal {
	return Principal{
		SubjectID:   u.ID,
		Authorities: slices.Clone(u.Authorities),
		Status:      u.Status,
	}
}

// Identity links a user to an account at an external provider.
type Identity struct {
	Provider  string
	Subject   string // provider's stable user id
	UserID    string
	Email     string
	CreatedAt time.Time
}
