package constants

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
)

var (
	OauthClientId     string
	OauthClientSecret string
	OauthRedirectUrl  string
	FrontendUrl       string
	CronSecret        string
	DbHost            string
	DbPort            string
	DbUser            string
	DbPassword        string
	DbName            string
	FetchLimit        int64
	GroupThreads      bool
	SecureCookies     bool
)

// Flags are registered here but parsed from main, so that importing this
// package from tests does not swallow the test binary's own flags. A local
// .env is loaded first so its values feed the flag defaults.
func init() {
	_ = godotenv.Load()

	flag.StringVar(&OauthClientId, "oauth_client_id", envOr("GOOGLE_CLIENT_ID", "dummy"), "oauth client id")
	flag.StringVar(&OauthClientSecret, "oauth_client_secret", envOr("GOOGLE_CLIENT_SECRET", "dummy"), "oauth client secret")
	flag.StringVar(&OauthRedirectUrl, "oauth_redirect_url", envOr("GOOGLE_REDIRECT_URI", "http://localhost:8090/auth/callback"), "oauth redirect url registered with the provider")
	flag.StringVar(&FrontendUrl, "frontend_url", envOr("FRONTEND_URL", "http://localhost:3000"), "URLs allowlisted by UI for CORS.")
	flag.StringVar(&CronSecret, "cron_secret", os.Getenv("CRON_SECRET"), "bearer secret gating the /cron sweep. Empty disables the check.")
	flag.StringVar(&DbHost, "db_host", envOr("DB_HOST", "gmailfeed_db"), "postgres host")
	flag.StringVar(&DbPort, "db_port", envOr("DB_PORT", "5432"), "postgres port")
	flag.StringVar(&DbUser, "db_user", envOr("DB_USER", "gmailfeed"), "postgres user")
	flag.StringVar(&DbPassword, "db_password", envOr("DB_PASSWORD", "gmailfeed"), "postgres password")
	flag.StringVar(&DbName, "db_name", envOr("DB_NAME", "gmailfeed"), "postgres database name")
	flag.Int64Var(&FetchLimit, "fetch_limit", 50, "max messages pulled from the inbox per fetch")
	flag.BoolVar(&GroupThreads, "group_threads", true, "serve assembled threads instead of flat messages")
	flag.BoolVar(&SecureCookies, "secure_cookies", false, "mark session cookies Secure (enable behind TLS)")
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
