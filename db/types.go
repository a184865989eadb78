package db

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Credential is one stored OAuth grant, keyed by the user's mail address.
// RefreshToken is long-lived; once non-empty it survives every update unless
// a fresh authorization supplies a replacement.
type Credential struct {
	UserEmail    string    `db:"user_email" json:"userEmail"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	Expiry       time.Time `db:"expiry" json:"expiry"`
	UpdatedOn    time.Time `db:"updated_on" json:"updatedOn"`
}

// MailboxCache is the last successful fetch result for one user, replaced
// wholesale on every fetch. Payload holds the serialized message or thread
// collection.
type MailboxCache struct {
	UserEmail   string         `db:"user_email"`
	Payload     types.JSONText `db:"payload"`
	Threaded    bool           `db:"threaded"`
	LastFetched time.Time      `db:"last_fetched"`
}
