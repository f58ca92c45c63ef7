package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/sok/internal/auth/service"
	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/aussiebroadwan/sok/pkg/slogx"
)

type SignupRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Name     string `json:"name" example:"Alice"`
	Password string `json:"password" example:"correct-horse"`
}

type SignupResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status" example:"ACTIVE"`
}

type EmailCheckResponse struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

type UsersHandler struct {
	UserService *service.UserService
}

// HandleSignup godoc
//
//	@Summary		Create a password account
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignupRequest	true	"New account"
//	@Success		201		{object}	SignupResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		409		{object}	authsdk.ErrorResponse	"email_taken"
//	@Router			/api/signup [post]
func (h *UsersHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	u, err := h.UserService.CreateLocalUser(r.Context(), req.Email, req.Name, req.Password, nil)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		authsdk.ErrEmailTaken.WriteError(w)
		return
	case errors.Is(err, service.ErrInvalidEmail):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid email address").WriteError(w)
		return
	case errors.Is(err, service.ErrWeakPassword):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "password must be at least 8 characters").WriteError(w)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("signup_failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, SignupResponse{ID: u.ID, Email: u.Email, Status: string(u.Status)})
}

// HandleCheckEmail godoc
//
//	@Summary		Check whether an email is free
//	@Tags			Users
//	@Produce		json
//	@Param			email	query		string	true	"Email address"
//	@Success		200		{object}	EmailCheckResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Router			/api/check/email [get]
func (h *UsersHandler) HandleCheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	ok, err := h.UserService.EmailAvailable(r.Context(), email)
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid email address").WriteError(w)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("email_check_failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, EmailCheckResponse{Email: email, Available: ok})
}
