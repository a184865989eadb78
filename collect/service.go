package collect

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/jyothri/gmailfeed/db"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// CredentialStore is the slice of the persistence layer the collector needs
// for the token lifecycle.
type CredentialStore interface {
	GetCredential(ctx context.Context, userEmail string) (db.Credential, bool, error)
	SaveCredential(ctx context.Context, cred db.Credential) error
	ListCredentials(ctx context.Context) ([]db.Credential, error)
}

// MailboxStore receives the fetched collection for a user.
type MailboxStore interface {
	SaveMailbox(ctx context.Context, userEmail string, payload types.JSONText, threaded bool) error
}

// Service talks to the mail provider on behalf of stored users: it keeps
// their credentials fresh, pulls inbox messages, assembles threads and writes
// the result to the cache store.
type Service struct {
	creds        CredentialStore
	cache        MailboxStore
	config       *oauth2.Config
	throttler    *rate.Limiter
	groupThreads bool

	// test seams
	now        func() time.Time
	apiOptions []option.ClientOption
}

func NewService(creds CredentialStore, cache MailboxStore, clientId string, clientSecret string, redirectUrl string, groupThreads bool) *Service {
	return &Service{
		creds: creds,
		cache: cache,
		config: &oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  redirectUrl,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				gmail.GmailReadonlyScope,
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		throttler:    rate.NewLimiter(50, 5),
		groupThreads: groupThreads,
		now:          time.Now,
	}
}
