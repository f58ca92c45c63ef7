package authsdk

// ErrorResponse is the wire form of APIError, for swagger.
type ErrorResponse struct {
	// Error is a machine readable code, e.g. "revoked".
	Error string `json:"error" example:"unauthenticated"`

	// ErrorDescription is for humans.
	ErrorDescription string `json:"error_description" example:"authentication required"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct-horse"`
}

// ReissueRequest carries the refresh token. The X-Refresh-Token header is
// accepted instead.
type ReissueRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and reissue.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type" example:"Bearer"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in" example:"900"`

	// RefreshExpiresIn is the refresh token lifetime in seconds.
	RefreshExpiresIn int `json:"refresh_expires_in" example:"604800"`
}

// MeResponse describes the authenticated principal.
type MeResponse struct {
	Sub         string   `json:"sub"`
	Authorities []string `json:"authorities" example:"USER"`
	Status      string   `json:"status" example:"ACTIVE"`
}

type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime" example:"1h2m3s"`
	Version string        `json:"version" example:"0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is only filled in by /readyz.
type HealthChecks struct {
	Store  string `json:"store"`
	Signer string `json:"signer"`
}
