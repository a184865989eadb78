package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
)

// sweepProvider routes requests by bearer token so each user gets its own
// inbox, with one user configured to fail.
type sweepProvider struct {
	t        *testing.T
	failUser string
	inboxes  map[string]*fakeInbox
}

func (p *sweepProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user := strings.TrimPrefix(token, "access-")
	if user == p.failUser {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
		return
	}
	inbox, ok := p.inboxes[user]
	if !ok {
		p.t.Errorf("request for unknown user %q", user)
		http.NotFound(w, r)
		return
	}
	inbox.ServeHTTP(w, r)
}

func TestSweepIsolatesFailures(t *testing.T) {
	users := []string{"one@x.com", "two@x.com", "three@x.com"}
	provider := &sweepProvider{t: t, failUser: "two@x.com", inboxes: map[string]*fakeInbox{}}
	for _, user := range users {
		provider.inboxes[user] = &fakeInbox{t: t, messages: []*gmail.Message{
			testMessage("m-"+user, "t-"+user, "Alice <alice@x.com>", user, "Hello", "INBOX"),
		}}
	}
	server := httptest.NewServer(provider)
	defer server.Close()

	store := newFakeStore(
		validCredential("one@x.com"),
		validCredential("two@x.com"),
		validCredential("three@x.com"),
	)
	service := newTestService(store, true)
	pointAtFakeProvider(service, server.URL)

	outcomes, err := service.Sweep(context.Background(), 50)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	byUser := map[string]SweepOutcome{}
	for _, outcome := range outcomes {
		byUser[outcome.UserEmail] = outcome
	}

	for _, user := range []string{"one@x.com", "three@x.com"} {
		outcome := byUser[user]
		if !outcome.Success {
			t.Errorf("user %s failed: %s", user, outcome.Error)
		}
		if outcome.ItemCount != 1 {
			t.Errorf("user %s ItemCount = %d, want 1", user, outcome.ItemCount)
		}
	}

	failed := byUser["two@x.com"]
	if failed.Success {
		t.Error("failing user reported success")
	}
	if failed.Error == "" {
		t.Error("failing user has no recorded error")
	}

	// Healthy users still got their caches refreshed.
	if _, ok := store.mailboxes["one@x.com"]; !ok {
		t.Error("one@x.com cache not written")
	}
	if _, ok := store.mailboxes["two@x.com"]; ok {
		t.Error("failing user's cache was written")
	}
}

func TestSweepWithNoUsers(t *testing.T) {
	service := newTestService(newFakeStore(), true)

	outcomes, err := service.Sweep(context.Background(), 50)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("got %d outcomes for an empty credential store", len(outcomes))
	}
}
