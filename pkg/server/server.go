package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/ical"
	"github.com/mopad/mopad/pkg/log"
	"github.com/mopad/mopad/pkg/metrics"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/service"
	"github.com/mopad/mopad/pkg/types"
)

// Server is the HTTP presentation layer: the WebSocket endpoint clients
// talk to, the calendar export, the team listing, metrics, and the static
// frontend.
type Server struct {
	service    *service.Service
	hub        *hub.Hub
	logger     zerolog.Logger
	router     *mux.Router
	httpServer *http.Server
}

// New wires the routes for the given service and broadcast hub. staticDir
// is served at / when non-empty.
func New(svc *service.Service, broadcast *hub.Hub, staticDir string) *Server {
	s := &Server{
		service: svc,
		hub:     broadcast,
		logger:  log.WithComponent("server"),
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc("/api/talks", s.handleTalks)
	s.router.HandleFunc("/api/teams", s.handleTeams).Methods(http.MethodGet)
	s.router.HandleFunc("/talks.ics", s.handleCalendar).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler())
	if staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP on addr until Shutdown is called. It blocks.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// No global read/write timeouts: WebSocket connections are
		// long-lived by design.
		IdleTimeout: 60 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("listening")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	data, err := protocol.Encode(s.service.Teams())
	if err != nil {
		http.Error(w, "failed to encode teams", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var filter *types.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID := types.UserID(id)
		filter = &userID
	}

	talks, users := s.service.CalendarData()
	w.Header().Set("Content-Type", ical.ContentType)
	_, _ = w.Write([]byte(ical.Render(talks, users, time.Now(), filter)))
}
