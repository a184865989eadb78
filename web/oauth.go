package web

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/jyothri/gmailfeed/constants"
)

const (
	sessionCookieName = "user_email"
	stateCookieName   = "oauth_state"

	sessionCookieMaxAge = 30 * 24 * 60 * 60 // 30 days
	stateCookieMaxAge   = 10 * 60
)

func (h *Handlers) auth(r *mux.Router) {
	// OAuth routes with smaller body limit (16 KB)
	authRouter := r.PathPrefix("/auth/").Subrouter()
	authRouter.Use(RequestSizeLimitMiddleware(AuthMaxBodySize))
	authRouter.HandleFunc("/login", h.LoginHandler).Methods("GET")
	authRouter.HandleFunc("/callback", h.CallbackHandler).Methods("GET")
	authRouter.HandleFunc("/logout", h.LogoutHandler).Methods("POST")
}

// LoginHandler sends the browser to the provider's consent screen. The state
// nonce round-trips through a short-lived cookie and is checked on callback.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state := generateRandomString(16)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   constants.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.mail.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler finishes the authorization-code dance: exchange the code,
// run the initial fetch, then hand the browser a session cookie.
func (h *Handlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		slog.Warn("OAuth consent failed", "error", errParam)
		redirectHome(w, r, "error="+url.QueryEscape(errParam))
		return
	}

	code := query.Get("code")
	if code == "" {
		redirectHome(w, r, "error=no_code")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
		slog.Warn("OAuth state mismatch", "remote_addr", r.RemoteAddr)
		redirectHome(w, r, "error=state_mismatch")
		return
	}
	clearCookie(w, stateCookieName)

	cred, err := h.mail.ExchangeCode(r.Context(), code)
	if err != nil {
		slog.Error("Failed to exchange authorization code", "error", err)
		redirectHome(w, r, "error=token_exchange")
		return
	}

	// Initial fetch so the first page load has data to serve.
	if _, err := h.mail.Fetch(r.Context(), cred.UserEmail, constants.FetchLimit); err != nil {
		slog.Error("Initial fetch after sign-in failed", "user", cred.UserEmail, "error", err)
		redirectHome(w, r, "error=token_exchange")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    cred.UserEmail,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   constants.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	redirectHome(w, r, "success=true")
}

// LogoutHandler signs the user out: session cookie expires immediately and
// the stored credential and cached mailbox are removed.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); handleMaxBytesError(w, r, err, AuthMaxBodySize) {
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		userEmail := cookie.Value
		if err := h.store.DeleteCredential(r.Context(), userEmail); err != nil {
			slog.Error("Failed to delete credential on logout", "user", userEmail, "error", err)
			http.Error(w, "Failed to logout", http.StatusInternalServerError)
			return
		}
		if err := h.store.DeleteMailbox(r.Context(), userEmail); err != nil {
			slog.Error("Failed to delete cached mailbox on logout", "user", userEmail, "error", err)
			http.Error(w, "Failed to logout", http.StatusInternalServerError)
			return
		}
		slog.Info("User signed out", "user", userEmail)
	}

	clearCookie(w, sessionCookieName)
	writeJSONResponse(w, map[string]bool{"success": true}, http.StatusOK)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   constants.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectHome(w http.ResponseWriter, r *http.Request, queryString string) {
	http.Redirect(w, r, constants.FrontendUrl+"/?"+queryString, http.StatusFound)
}

func generateRandomString(length int) string {
	var chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890-"
	ll := len(chars)
	b := make([]byte, length)
	rand.Read(b) // generates len(b) random bytes
	for i := 0; i < length; i++ {
		b[i] = chars[int(b[i])%ll]
	}
	return string(b)
}
