/*
2026 © Postgres.ai
*/

// Package api provides the HTTP surface: health, request submission, request status and live sessions.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/srv/api"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/services/queue"
	"gitlab.com/postgres-ai/hostlink/pkg/services/sessionmgr"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
	"gitlab.com/postgres-ai/hostlink/pkg/util/text"
)

// Server defines the HTTP server of the service.
type Server struct {
	cfg      *config.Config
	queue    queue.Queue
	store    storage.Store
	sessions *sessionmgr.Manager
	httpSrv  *http.Server
}

// HealthResponse represents a response for health-check requests.
type HealthResponse struct {
	Version   string `json:"version"`
	Sessions  int    `json:"sessions"`
	Free      int    `json:"free"`
	Unhealthy int    `json:"unhealthy"`
}

// EnqueueResponse represents a response for an accepted request.
type EnqueueResponse struct {
	RequestID string `json:"requestId"`
}

// RequestResponse represents the state of a request.
type RequestResponse struct {
	RequestID        string                   `json:"requestId"`
	Attempt          int                      `json:"attempt"`
	SessionID        string                   `json:"sessionId,omitempty"`
	ClientTrackingID string                   `json:"clientTrackingId,omitempty"`
	Status           models.RequestStatus     `json:"status"`
	RawOutput        string                   `json:"rawOutput,omitempty"`
	ParsedOutput     json.RawMessage          `json:"parsedOutput,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
	Transactions     []models.TransactionData `json:"transactions,omitempty"`
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, q queue.Queue, store storage.Store, sessions *sessionmgr.Manager) *Server {
	return &Server{
		cfg:      cfg,
		queue:    q,
		store:    store,
		sessions: sessions,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /requests", s.enqueue)
	mux.HandleFunc("GET /requests/{id}", s.request)
	mux.HandleFunc("GET /sessions", s.listSessions)

	mux.HandleFunc("GET /", s.healthCheck)

	return mux
}

// Run starts listening and blocks until the server is shut down.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.App.Host, s.cfg.App.Port)

	log.Msg(fmt.Sprintf("Server start listening on %s", addr))
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to serve")
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}

	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	log.Dbg("Health check received:", html.EscapeString(r.URL.Path))

	response := HealthResponse{Version: s.cfg.App.Version}

	for _, info := range s.sessions.Sessions() {
		response.Sessions++

		switch {
		case info.Reset:
			response.Unhealthy++
		case !info.Leased:
			response.Free++
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	if r.Body == http.NoBody {
		api.SendBadRequestError(w, r, "request body cannot be empty")
		return
	}

	var request models.QueryRequest
	if err := api.ReadJSON(r, &request); err != nil {
		api.SendBadRequestError(w, r, err.Error())
		return
	}

	if request.LogonInstructionSet == "" || request.QueryInstructionSet == "" {
		api.SendBadRequestError(w, r, "logonInstructionSet and queryInstructionSet are required")
		return
	}

	if strings.Contains(request.RequestID, "/") {
		api.SendBadRequestError(w, r, fmt.Sprintf("invalid request id %q", request.RequestID))
		return
	}

	requestID, err := s.queue.Enqueue(r.Context(), request)
	if err != nil {
		log.Err(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	log.Dbg("Request enqueued: ", requestID)

	writeJSON(w, http.StatusAccepted, EnqueueResponse{RequestID: requestID})
}

// request returns the latest delivery attempt of a request.
func (s *Server) request(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	for attempt := s.cfg.Queue.MaxAttempts; attempt >= 1; attempt-- {
		row, err := s.store.GetRequest(r.Context(), queue.AttemptRequestID(requestID, attempt))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}

			log.Err(err)
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		transactions, err := s.store.ListTransactions(r.Context(), row.RequestID)
		if err != nil {
			log.Err(err)
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		response := RequestResponse{
			RequestID:        requestID,
			Attempt:          attempt,
			SessionID:        row.SessionID,
			ClientTrackingID: row.ClientTrackingID,
			Status:           row.Status,
			RawOutput:        row.RawOutput,
			CreatedAt:        row.CreatedAt,
			Transactions:     transactions,
		}

		if row.ParsedOutput != "" {
			response.ParsedOutput = json.RawMessage(row.ParsedOutput)
		}

		writeJSON(w, http.StatusOK, response)

		return
	}

	http.Error(w, fmt.Sprintf("request %q not found", requestID), http.StatusNotFound)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.Sessions()

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, sessions)
		return
	}

	rows := [][]string{{"session", "logon set", "user", "request", "state", "idle", "created"}}

	for _, info := range sessions {
		state := "free"

		switch {
		case info.Reset:
			state = "reset"
		case info.Leased:
			state = "leased"
		}

		idle := "-"
		if !info.Leased {
			idle = durafmt.Parse(info.Idle.Round(time.Second)).String()
		}

		rows = append(rows, []string{
			info.SessionID, info.LogonSet, info.Username, info.RequestID, state, idle, humanize.Time(info.CreatedAt),
		})
	}

	if len(sessions) == 0 {
		rows = nil
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	text.RenderTable(w, rows)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err)
	}
}
