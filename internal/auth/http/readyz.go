package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Pings the session store and round-trips a probe token through the codec.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"a dependency is not ready"
//	@Router			/readyz [get]
func ReadyzHandler(startTime time.Time, version string, st store.Store, codec *jwtx.Codec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{Store: "ok", Signer: "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		if err := probeCodec(codec); err != nil {
			checks.Signer = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Truncate(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

func probeCodec(codec *jwtx.Codec) error {
	tok, err := codec.Issue(jwtx.NewClaims(jwtx.KindAccess, "readyz", nil, ""), time.Minute)
	if err != nil {
		return err
	}
	_, err = codec.Parse(tok)
	return err
}
