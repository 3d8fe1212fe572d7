package auth

import (
	"net/http"
	"strings"
	"time"
)

const DefaultCookieName = "token"

// CookieConfig controls the attributes of the session cookie. SameSite is
// only emitted when explicitly configured.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

func (cfg CookieConfig) name() string {
	if cfg.Name == "" {
		return DefaultCookieName
	}
	return cfg.Name
}

// ParseSameSite maps "lax", "strict" and "none" to their cookie modes.
// Anything else leaves the attribute unset.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return 0
	}
}

func setTokenCookie(w http.ResponseWriter, cfg CookieConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func clearTokenCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}
