package httpx

import (
	"net/http"
	"strings"
)

// BearerToken pulls the credential out of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively per RFC 6750.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteBearerChallenge writes an RFC 6750 challenge. An empty errCode gives
// the bare challenge used when no credential was presented.
func WriteBearerChallenge(w http.ResponseWriter, code int, errCode string, body any) {
	challenge := "Bearer"
	if errCode != "" {
		challenge += ` error="` + errCode + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteJSON(w, code, body)
}
