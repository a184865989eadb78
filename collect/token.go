package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jyothri/gmailfeed/db"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Access tokens Google hands out without an expiry are treated as one-hour
// tokens, matching the provider's documented lifetime.
const defaultTokenLifetime = time.Hour

// AuthCodeURL builds the provider consent URL. Offline access plus forced
// re-consent guarantees a refresh token is issued even for repeat sign-ins.
func (s *Service) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for tokens, resolves the account
// identity from the Gmail profile and persists the credential.
func (s *Service) ExchangeCode(ctx context.Context, code string) (db.Credential, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return db.Credential{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	userEmail, err := s.identity(ctx, token)
	if err != nil {
		return db.Credential{}, err
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(defaultTokenLifetime)
	}

	cred := db.Credential{
		UserEmail:    userEmail,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       expiry,
	}
	if err := s.creds.SaveCredential(ctx, cred); err != nil {
		return db.Credential{}, err
	}
	return cred, nil
}

// EnsureValid returns a credential whose access token has not expired. A
// still-valid credential passes through untouched with no store write. An
// expired one is refreshed through the provider's refresh grant, keeping the
// original refresh token and identity, and the updated record is persisted.
// Refresh failures propagate as-is: no retry, no fallback.
func (s *Service) EnsureValid(ctx context.Context, cred db.Credential) (db.Credential, error) {
	if cred.Expiry.After(s.now()) {
		return cred, nil
	}

	slog.Info("Access token expired, refreshing", "user", cred.UserEmail)
	tokenSrc := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := tokenSrc.Token()
	if err != nil {
		return db.Credential{}, fmt.Errorf("failed to refresh access token for %s: %w", cred.UserEmail, err)
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(defaultTokenLifetime)
	}

	refreshed := db.Credential{
		UserEmail:    cred.UserEmail,
		AccessToken:  token.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       expiry,
	}
	if err := s.creds.SaveCredential(ctx, refreshed); err != nil {
		return db.Credential{}, err
	}
	return refreshed, nil
}

// identity resolves the mail address behind a freshly issued token.
func (s *Service) identity(ctx context.Context, token *oauth2.Token) (string, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, s.apiOptions...)
	gmailService, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create gmail service: %w", err)
	}

	profileInfo, err := gmailService.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get user profile from Gmail API: %w", err)
	}
	return profileInfo.EmailAddress, nil
}
