package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEnsureValidFreshCredential(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, true)
	cred := validCredential("owner@x.com")

	got, err := service.EnsureValid(context.Background(), cred)
	if err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}

	if got != cred {
		t.Errorf("fresh credential was modified: got %+v", got)
	}
	if len(store.credSaves) != 0 {
		t.Errorf("fresh credential triggered %d store writes, want 0", len(store.credSaves))
	}
}

func TestEnsureValidRefreshesExpired(t *testing.T) {
	var sawRefreshToken string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		sawRefreshToken = r.Form.Get("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tokenJSON("fresh-access")))
	}))
	defer provider.Close()

	store := newFakeStore()
	service := newTestService(store, true)
	pointAtFakeProvider(service, provider.URL)
	cred := expiredCredential("owner@x.com")

	got, err := service.EnsureValid(context.Background(), cred)
	if err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}

	if sawRefreshToken != cred.RefreshToken {
		t.Errorf("provider saw refresh token %q, want %q", sawRefreshToken, cred.RefreshToken)
	}
	if got.AccessToken != "fresh-access" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "fresh-access")
	}
	if got.RefreshToken != cred.RefreshToken {
		t.Errorf("RefreshToken = %q, want original %q", got.RefreshToken, cred.RefreshToken)
	}
	if got.UserEmail != cred.UserEmail {
		t.Errorf("UserEmail = %q, want %q", got.UserEmail, cred.UserEmail)
	}
	if !got.Expiry.After(cred.Expiry) {
		t.Errorf("Expiry %v not advanced past %v", got.Expiry, cred.Expiry)
	}
	if len(store.credSaves) != 1 {
		t.Fatalf("got %d store writes, want 1", len(store.credSaves))
	}
	if store.credSaves[0] != got {
		t.Errorf("persisted credential %+v differs from returned %+v", store.credSaves[0], got)
	}
}

func TestEnsureValidRefreshRejected(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer provider.Close()

	store := newFakeStore()
	service := newTestService(store, true)
	pointAtFakeProvider(service, provider.URL)

	_, err := service.EnsureValid(context.Background(), expiredCredential("owner@x.com"))
	if err == nil {
		t.Fatal("EnsureValid succeeded against a rejecting provider")
	}
	if !strings.Contains(err.Error(), "owner@x.com") {
		t.Errorf("error %q does not name the user", err)
	}
	if len(store.credSaves) != 0 {
		t.Errorf("rejected refresh still wrote %d credentials", len(store.credSaves))
	}
}

func TestExchangeCodePersistsCredential(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			r.ParseForm()
			if got := r.Form.Get("code"); got != "auth-code" {
				t.Errorf("exchange sent code %q, want %q", got, "auth-code")
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"exchanged-access","refresh_token":"exchanged-refresh","token_type":"Bearer","expires_in":3600}`))
		case strings.HasSuffix(r.URL.Path, "/users/me/profile"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"emailAddress":"newuser@x.com"}`))
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer provider.Close()

	store := newFakeStore()
	service := newTestService(store, true)
	pointAtFakeProvider(service, provider.URL)

	cred, err := service.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}

	if cred.UserEmail != "newuser@x.com" {
		t.Errorf("UserEmail = %q, want %q", cred.UserEmail, "newuser@x.com")
	}
	if cred.AccessToken != "exchanged-access" || cred.RefreshToken != "exchanged-refresh" {
		t.Errorf("tokens = (%q, %q), want exchanged pair", cred.AccessToken, cred.RefreshToken)
	}
	if cred.Expiry.IsZero() {
		t.Error("Expiry not set")
	}
	if len(store.credSaves) != 1 {
		t.Fatalf("got %d store writes, want 1", len(store.credSaves))
	}
}

func TestAuthCodeURLRequestsOfflineConsent(t *testing.T) {
	service := newTestService(newFakeStore(), true)

	u := service.AuthCodeURL("state-123")

	for _, fragment := range []string{"access_type=offline", "prompt=consent", "state=state-123"} {
		if !strings.Contains(u, fragment) {
			t.Errorf("auth URL %q missing %q", u, fragment)
		}
	}
}

func TestExchangeCodeDefaultsExpiry(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			w.Header().Set("Content-Type", "application/json")
			// No expires_in: provider omitted the token lifetime.
			w.Write([]byte(`{"access_token":"exchanged-access","refresh_token":"exchanged-refresh","token_type":"Bearer"}`))
		case strings.HasSuffix(r.URL.Path, "/users/me/profile"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"emailAddress":"newuser@x.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer provider.Close()

	store := newFakeStore()
	service := newTestService(store, true)
	pointAtFakeProvider(service, provider.URL)

	cred, err := service.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if got, want := cred.Expiry, testNow.Add(time.Hour); !got.Equal(want) {
		t.Errorf("Expiry = %v, want default %v", got, want)
	}
}
