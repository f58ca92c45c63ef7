package domain

import "time"

// OAuth2RequestState is the in-flight authorization request. It lives only
// in the client's state cookie between authorize and callback.
type OAuth2RequestState struct {
	Provider     string    `json:"p"`
	RedirectURI  string    `json:"r"`
	Nonce        string    `json:"n"`
	CodeVerifier string    `json:"v"`
	IssuedAt     time.Time `json:"t"`
}

// Profile is what an external provider tells us about the user.
type Profile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}
