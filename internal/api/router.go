package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lmartell/cipherduel/internal/api/handler"
	"github.com/lmartell/cipherduel/internal/api/middleware"
	"github.com/lmartell/cipherduel/internal/notify"
	"github.com/lmartell/cipherduel/internal/services/auth"
	"github.com/lmartell/cipherduel/internal/services/room"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	RoomController *room.Controller
	Notifier       *notify.Notifier
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	userHandler := handler.NewUserHandler(cfg.AuthService)
	roomHandler := handler.NewRoomHandler(cfg.RoomController)
	eventsHandler := handler.NewEventsHandler(cfg.Notifier)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// User routes (no auth required for creating users/logging in)
	api.HandleFunc("/users/guest", userHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/users/register", userHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", userHandler.Login).Methods(http.MethodPost)

	// Protected user routes
	userProtected := api.PathPrefix("/users").Subrouter()
	userProtected.Use(authMiddleware)
	userProtected.HandleFunc("/me", userHandler.GetMe).Methods(http.MethodGet)

	// Public room routes: anyone holding a code or room ID may look, and the
	// SSE hint stream carries no payload worth protecting
	api.HandleFunc("/rooms/code/{code}", roomHandler.GetByCode).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/players", roomHandler.Players).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/events", eventsHandler.Stream).Methods(http.MethodGet)

	// Protected room routes
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Use(authMiddleware)
	rooms.HandleFunc("", roomHandler.Create).Methods(http.MethodPost)
	rooms.HandleFunc("/code/{code}/join", roomHandler.Join).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/leave", roomHandler.Leave).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/start", roomHandler.Start).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/finish", roomHandler.Finish).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}", roomHandler.Cancel).Methods(http.MethodDelete)
	rooms.HandleFunc("/{id}/heartbeat", roomHandler.Heartbeat).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/guesses", roomHandler.UpdateGuesses).Methods(http.MethodPut)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
