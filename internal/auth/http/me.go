package http

import (
	"net/http"

	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/aussiebroadwan/sok/pkg/httpx"
)

// MeHandler godoc
//
//	@Summary		Current principal
//	@Description	Returns the principal carried by the access token. No store lookup is made.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"unauthenticated"
//	@Router			/v1/me [get]
func MeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		rejectUnauthenticated(w, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		Sub:         p.SubjectID,
		Authorities: p.Authorities,
		Status:      string(p.Status),
	})
}
