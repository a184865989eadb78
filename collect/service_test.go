package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/jyothri/gmailfeed/db"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// testNow is the frozen clock used by the service under test.
var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory CredentialStore + MailboxStore.
type fakeStore struct {
	mu         sync.Mutex
	creds      []db.Credential
	credSaves  []db.Credential
	mailboxes  map[string]types.JSONText
	threaded   map[string]bool
	mailboxErr error
}

func newFakeStore(creds ...db.Credential) *fakeStore {
	return &fakeStore{
		creds:     creds,
		mailboxes: map[string]types.JSONText{},
		threaded:  map[string]bool{},
	}
}

func (f *fakeStore) GetCredential(ctx context.Context, userEmail string) (db.Credential, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cred := range f.creds {
		if cred.UserEmail == userEmail {
			return cred, true, nil
		}
	}
	return db.Credential{}, false, nil
}

func (f *fakeStore) SaveCredential(ctx context.Context, cred db.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credSaves = append(f.credSaves, cred)
	for i := range f.creds {
		if f.creds[i].UserEmail == cred.UserEmail {
			f.creds[i] = cred
			return nil
		}
	}
	f.creds = append(f.creds, cred)
	return nil
}

func (f *fakeStore) ListCredentials(ctx context.Context) ([]db.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]db.Credential, len(f.creds))
	copy(out, f.creds)
	return out, nil
}

func (f *fakeStore) SaveMailbox(ctx context.Context, userEmail string, payload types.JSONText, threaded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mailboxErr != nil {
		return f.mailboxErr
	}
	f.mailboxes[userEmail] = payload
	f.threaded[userEmail] = threaded
	return nil
}

func newTestService(store *fakeStore, groupThreads bool) *Service {
	s := NewService(store, store, "client-id", "client-secret", "http://localhost/auth/callback", groupThreads)
	s.now = func() time.Time { return testNow }
	return s
}

// pointAtFakeProvider rewires both the OAuth token endpoint and the mail API
// base URL at a local test server.
func pointAtFakeProvider(s *Service, baseURL string) {
	s.config.Endpoint = oauth2.Endpoint{
		AuthURL:  baseURL + "/auth",
		TokenURL: baseURL + "/token",
	}
	s.apiOptions = []option.ClientOption{option.WithEndpoint(baseURL)}
}

func validCredential(userEmail string) db.Credential {
	return db.Credential{
		UserEmail:    userEmail,
		AccessToken:  "access-" + userEmail,
		RefreshToken: "refresh-" + userEmail,
		Expiry:       testNow.Add(30 * time.Minute),
	}
}

func expiredCredential(userEmail string) db.Credential {
	cred := validCredential(userEmail)
	cred.Expiry = testNow.Add(-5 * time.Minute)
	return cred
}

func tokenJSON(accessToken string) string {
	return fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, accessToken)
}
