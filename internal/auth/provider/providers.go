package provider

import (
	"io"
	"strconv"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	GitHubUserInfoURL = "https://api.github.com/user"
	KakaoUserInfoURL  = "https://kapi.kakao.com/v2/user/me"
)

// KakaoEndpoint is not shipped by x/oauth2.
var KakaoEndpoint = oauth2.Endpoint{
	AuthURL:   "https://kauth.kakao.com/oauth/authorize",
	TokenURL:  "https://kauth.kakao.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

func Google(c Config) *OAuth2 {
	return newOAuth2("google", c, endpoints.Google, GoogleUserInfoURL,
		[]string{"openid", "email", "profile"}, decodeOIDC)
}

// GitHub never reports an email as verified: /user returns the public
// profile address, which GitHub does not vouch for.
func GitHub(c Config) *OAuth2 {
	return newOAuth2("github", c, endpoints.GitHub, GitHubUserInfoURL,
		[]string{"read:user", "user:email"}, decodeGitHub)
}

func Kakao(c Config) *OAuth2 {
	return newOAuth2("kakao", c, KakaoEndpoint, KakaoUserInfoURL,
		[]string{"account_email", "profile_nickname"}, decodeKakao)
}

// Generic is any OpenID Connect provider with a standard userinfo endpoint.
// The endpoints must all be set in c.
func Generic(name string, c Config) *OAuth2 {
	return newOAuth2(name, c, oauth2.Endpoint{}, "", []string{"openid", "email", "profile"}, decodeOIDC)
}

func decodeOIDC(r io.Reader) (domain.Profile, error) {
	var body struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{
		Subject:       body.Sub,
		Email:         body.Email,
		EmailVerified: body.EmailVerified,
		Name:          body.Name,
	}, nil
}

func decodeGitHub(r io.Reader) (domain.Profile, error) {
	var body struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return domain.Profile{}, err
	}

	p := domain.Profile{Email: body.Email, Name: body.Name}
	if body.ID != 0 {
		p.Subject = strconv.FormatInt(body.ID, 10)
	}
	if p.Name == "" {
		p.Name = body.Login
	}
	return p, nil
}

func decodeKakao(r io.Reader) (domain.Profile, error) {
	var body struct {
		ID      int64 `json:"id"`
		Account struct {
			Email           string `json:"email"`
			IsEmailValid    bool   `json:"is_email_valid"`
			IsEmailVerified bool   `json:"is_email_verified"`
			Profile         struct {
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return domain.Profile{}, err
	}

	p := domain.Profile{
		Email:         body.Account.Email,
		EmailVerified: body.Account.IsEmailValid && body.Account.IsEmailVerified,
		Name:          body.Account.Profile.Nickname,
	}
	if body.ID != 0 {
		p.Subject = strconv.FormatInt(body.ID, 10)
	}
	return p, nil
}
