package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jyothri/gmailfeed/collect"
	"github.com/jyothri/gmailfeed/constants"
)

func (h *Handlers) api(r *mux.Router) {
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}).Methods("GET")
	r.HandleFunc("/data", h.DataHandler).Methods("GET")
	r.HandleFunc("/cron", h.CronHandler).Methods("GET")
}

// DataResponse is the /data payload. Exactly one of Emails or Threads is set
// on success, mirroring the fetch mode the collection was built in.
type DataResponse struct {
	Authenticated bool            `json:"authenticated"`
	UserEmail     string          `json:"userEmail,omitempty"`
	Emails        json.RawMessage `json:"emails,omitempty"`
	Threads       json.RawMessage `json:"threads,omitempty"`
	LastFetched   *time.Time      `json:"lastFetched,omitempty"`
	FromCache     bool            `json:"fromCache"`
	Error         string          `json:"error,omitempty"`
}

// DataHandler serves the signed-in user's mailbox. The cached copy wins
// unless refresh=true forces a live pull; a user with no cache entry gets a
// live pull as well.
func (h *Handlers) DataHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSONResponse(w, DataResponse{Authenticated: false, Error: "Not authenticated"}, http.StatusUnauthorized)
		return
	}
	userEmail := cookie.Value

	refresh := r.URL.Query().Get("refresh") == "true"
	if refresh {
		h.serveLive(w, r, userEmail)
		return
	}

	cache, found, err := h.store.GetMailbox(r.Context(), userEmail)
	if err != nil {
		slog.Error("Failed to read cached mailbox", "user", userEmail, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if found {
		response := DataResponse{
			Authenticated: true,
			UserEmail:     cache.UserEmail,
			LastFetched:   &cache.LastFetched,
			FromCache:     true,
		}
		if cache.Threaded {
			response.Threads = json.RawMessage(cache.Payload)
		} else {
			response.Emails = json.RawMessage(cache.Payload)
		}
		writeJSONResponse(w, response, http.StatusOK)
		return
	}

	h.serveLive(w, r, userEmail)
}

func (h *Handlers) serveLive(w http.ResponseWriter, r *http.Request, userEmail string) {
	result, err := h.mail.Fetch(r.Context(), userEmail, constants.FetchLimit)
	if err != nil {
		slog.Error("Live fetch failed", "user", userEmail, "error", err)
		http.Error(w, "Failed to fetch emails", http.StatusInternalServerError)
		return
	}
	if result == nil {
		// Session cookie without a stored credential: signed out elsewhere.
		writeJSONResponse(w, DataResponse{Authenticated: false, Error: "Not authenticated"}, http.StatusUnauthorized)
		return
	}

	now := time.Now()
	response := DataResponse{
		Authenticated: true,
		UserEmail:     result.UserEmail,
		LastFetched:   &now,
	}
	var payload []byte
	if result.Threaded {
		payload, err = json.Marshal(result.Threads)
		response.Threads = payload
	} else {
		payload, err = json.Marshal(result.Emails)
		response.Emails = payload
	}
	if err != nil {
		slog.Error("Failed to marshal fetch result", "user", userEmail, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, response, http.StatusOK)
}

// CronResponse summarizes one batch sweep across every stored user.
type CronResponse struct {
	Success   bool                   `json:"success"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Results   []collect.SweepOutcome `json:"results"`
	Timestamp string                 `json:"timestamp"`
}

// CronHandler runs the batch refresh sweep. When a cron secret is configured
// the caller must present it as a bearer token; requests from the platform
// scheduler identify themselves with the X-Appengine-Cron header instead.
func (h *Handlers) CronHandler(w http.ResponseWriter, r *http.Request) {
	if constants.CronSecret != "" && r.Header.Get("X-Appengine-Cron") != "true" {
		if r.Header.Get("Authorization") != "Bearer "+constants.CronSecret {
			writeJSONResponse(w, map[string]string{"error": "Unauthorized"}, http.StatusUnauthorized)
			return
		}
	}

	outcomes, err := h.mail.Sweep(r.Context(), constants.FetchLimit)
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		http.Error(w, "Failed to run sweep", http.StatusInternalServerError)
		return
	}

	response := CronResponse{Success: true, Results: outcomes, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	for _, outcome := range outcomes {
		if outcome.Success {
			response.Succeeded++
		} else {
			response.Failed++
		}
	}
	writeJSONResponse(w, response, http.StatusOK)
}

func setJsonHeader(w http.ResponseWriter) {
	w.Header().Set(
		"Content-Type",
		"application/json",
	)
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	setJsonHeader(w)

	serializedBody, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal JSON", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(statusCode)

	if _, err := w.Write(serializedBody); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
