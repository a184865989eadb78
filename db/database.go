package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	_ "github.com/lib/pq"
)

// Store owns the database handle. It is constructed once at process start and
// handed to the components that need it.
type Store struct {
	db *sqlx.DB
}

// Open connects to postgres and runs migrations.
func Open(host string, port string, user string, password string, dbname string) (*Store, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s "+
		"password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	conn, err := sqlx.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to database")

	s := &Store{db: conn}
	if err := s.migrateDB(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveCredential upserts the credential row for its user. A non-empty stored
// refresh token is kept when the incoming one is empty: providers only return
// a refresh token on the first consented exchange.
func (s *Store) SaveCredential(ctx context.Context, cred Credential) error {
	upsert_row := `insert into credentials
			(user_email, access_token, refresh_token, expiry, updated_on)
		values
			($1, $2, $3, $4, current_timestamp)
		on conflict (user_email) do update set
			access_token = excluded.access_token,
			refresh_token = case when excluded.refresh_token = ''
				then credentials.refresh_token
				else excluded.refresh_token end,
			expiry = excluded.expiry,
			updated_on = current_timestamp`
	_, err := s.db.ExecContext(ctx, upsert_row, cred.UserEmail, cred.AccessToken, cred.RefreshToken, cred.Expiry)
	if err != nil {
		return fmt.Errorf("failed to save credential for %s: %w", cred.UserEmail, err)
	}
	return nil
}

// GetCredential looks up the credential for a user. A missing row is reported
// through the bool, not as an error.
func (s *Store) GetCredential(ctx context.Context, userEmail string) (Credential, bool, error) {
	read_row :=
		`select user_email, access_token, refresh_token, expiry, updated_on
		from credentials
		where user_email = $1`
	cred := Credential{}
	err := s.db.GetContext(ctx, &cred, read_row, userEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("failed to get credential for %s: %w", userEmail, err)
	}
	return cred, true, nil
}

func (s *Store) DeleteCredential(ctx context.Context, userEmail string) error {
	delete_row := `delete from credentials where user_email = $1`
	_, err := s.db.ExecContext(ctx, delete_row, userEmail)
	if err != nil {
		return fmt.Errorf("failed to delete credential for %s: %w", userEmail, err)
	}
	return nil
}

// ListCredentials returns every stored credential. Feeds the batch sweep.
func (s *Store) ListCredentials(ctx context.Context) ([]Credential, error) {
	read_row :=
		`select user_email, access_token, refresh_token, expiry, updated_on
		from credentials
		order by user_email`
	creds := []Credential{}
	err := s.db.SelectContext(ctx, &creds, read_row)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// SaveMailbox replaces the cached fetch result for a user wholesale.
func (s *Store) SaveMailbox(ctx context.Context, userEmail string, payload types.JSONText, threaded bool) error {
	upsert_row := `insert into mailboxcache
			(user_email, payload, threaded, last_fetched)
		values
			($1, $2, $3, current_timestamp)
		on conflict (user_email) do update set
			payload = excluded.payload,
			threaded = excluded.threaded,
			last_fetched = current_timestamp`
	_, err := s.db.ExecContext(ctx, upsert_row, userEmail, payload, threaded)
	if err != nil {
		return fmt.Errorf("failed to cache mailbox for %s: %w", userEmail, err)
	}
	return nil
}

func (s *Store) GetMailbox(ctx context.Context, userEmail string) (MailboxCache, bool, error) {
	read_row :=
		`select user_email, payload, threaded, last_fetched
		from mailboxcache
		where user_email = $1`
	cache := MailboxCache{}
	err := s.db.GetContext(ctx, &cache, read_row, userEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return MailboxCache{}, false, nil
	}
	if err != nil {
		return MailboxCache{}, false, fmt.Errorf("failed to get cached mailbox for %s: %w", userEmail, err)
	}
	return cache, true, nil
}

func (s *Store) DeleteMailbox(ctx context.Context, userEmail string) error {
	delete_row := `delete from mailboxcache where user_email = $1`
	_, err := s.db.ExecContext(ctx, delete_row, userEmail)
	if err != nil {
		return fmt.Errorf("failed to delete cached mailbox for %s: %w", userEmail, err)
	}
	return nil
}

const create_credentials_table = `create table if not exists credentials (
	user_email varchar(320) primary key,
	access_token text not null,
	refresh_token text not null,
	expiry timestamptz not null,
	updated_on timestamptz not null default current_timestamp
)`

const create_mailboxcache_table = `create table if not exists mailboxcache (
	user_email varchar(320) primary key,
	payload jsonb not null,
	threaded boolean not null default false,
	last_fetched timestamptz not null default current_timestamp
)`

const create_version_table = `create table if not exists version (
	id integer primary key
)`

func (s *Store) migrateDB() error {
	var count int
	has_table_query := `select count(*)
		from information_schema.tables
		where table_name = $1`
	err := s.db.Get(&count, has_table_query, "version")
	if err != nil {
		return fmt.Errorf("failed to check for version table: %w", err)
	}
	if count == 0 {
		return s.migrateDBv0()
	}
	return nil
}

func (s *Store) migrateDBv0() error {
	insert_version_table := `delete from version;
		INSERT INTO version (id) VALUES (1)`

	statements := []struct {
		name string
		sql  string
	}{
		{"credentials", create_credentials_table},
		{"mailboxcache", create_mailboxcache_table},
		{"version", create_version_table},
	}

	for _, stmt := range statements {
		_, err := s.db.Exec(stmt.sql)
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", stmt.name, err)
		}
		slog.Info("Created table", "table", stmt.name)
	}

	_, err := s.db.Exec(insert_version_table)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}
