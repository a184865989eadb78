package web

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jyothri/gmailfeed/collect"
	"github.com/jyothri/gmailfeed/constants"
	"github.com/jyothri/gmailfeed/db"
	"github.com/rs/cors"
)

// MailService is the provider-facing surface the handlers drive.
type MailService interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (db.Credential, error)
	Fetch(ctx context.Context, userEmail string, limit int64) (*collect.FetchResult, error)
	Sweep(ctx context.Context, limit int64) ([]collect.SweepOutcome, error)
}

// SessionStore is the slice of the persistence layer the handlers read and
// clean up directly.
type SessionStore interface {
	GetMailbox(ctx context.Context, userEmail string) (db.MailboxCache, bool, error)
	DeleteCredential(ctx context.Context, userEmail string) error
	DeleteMailbox(ctx context.Context, userEmail string) error
}

// Handlers maps inbound HTTP requests onto the mail service and stores.
type Handlers struct {
	mail  MailService
	store SessionStore
}

func NewHandlers(mail MailService, store SessionStore) *Handlers {
	return &Handlers{mail: mail, store: store}
}

// Router wires every route onto a fresh mux router.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestSizeLimitMiddleware(DefaultMaxBodySize))
	h.api(r)
	h.auth(r)
	return r
}

func Server(mail MailService, store SessionStore) {
	slog.Info("Starting web server.")
	h := NewHandlers(mail, store)
	cors := cors.New(cors.Options{
		AllowedOrigins:   []string{constants.FrontendUrl},
		AllowCredentials: true,
	})
	handler := cors.Handler(h.Router())
	srv := &http.Server{
		Handler: handler,
		Addr:    ":8090",
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
