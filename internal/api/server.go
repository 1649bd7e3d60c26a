// Package api exposes the virtual-economy engine over HTTP. The account
// identifier arrives in the X-Account-ID header, resolved by an external
// authentication collaborator before requests reach this core.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fadedpez/caminata/internal/logging"
	"github.com/fadedpez/caminata/pkg/services/challenge"
	"github.com/fadedpez/caminata/pkg/services/dailycap"
	"github.com/fadedpez/caminata/pkg/services/streak"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

// Server is the economy HTTP API server
type Server struct {
	coins      wallet.WalletService
	stamps     *wallet.StampService
	caps       *dailycap.Service
	streaks    *streak.Service
	challenges *challenge.Service
	logger     *logging.Logger
}

// NewServer creates a new API server over the economy services
func NewServer(coins wallet.WalletService, stamps *wallet.StampService, caps *dailycap.Service, streaks *streak.Service, challenges *challenge.Service) *Server {
	return &Server{
		coins:      coins,
		stamps:     stamps,
		caps:       caps,
		streaks:    streaks,
		challenges: challenges,
		logger:     logging.Default,
	}
}

// Handler returns the chi router with all routes mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAccount)

		r.Route("/coins", func(r chi.Router) {
			r.Post("/register", s.handleCoinRegister)
			r.Post("/earn", s.handleCoinEarn)
			r.Post("/spend", s.handleCoinSpend)
			r.Post("/use-daily", s.handleUseDaily)
			r.Get("/balance", s.handleCoinBalance)
			r.Get("/history", s.handleCoinHistory)
		})

		r.Route("/stamps", func(r chi.Router) {
			r.Post("/sync", s.handleStampSync)
			r.Post("/earn", s.handleStampEarn)
			r.Post("/spend", s.handleStampSpend)
			r.Get("/balance", s.handleStampBalance)
		})

		r.Route("/streak", func(r chi.Router) {
			r.Post("/record", s.handleStreakRecord)
			r.Post("/seed", s.handleStreakSeed)
			r.Get("/", s.handleStreakGet)
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Post("/{key}/claim", s.handleChallengeClaim)
			r.Get("/unlocks", s.handleUnlocks)
		})
	})

	return r
}

// requireAccount rejects requests without an authenticated account header
func (s *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(accountHeader) == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing account identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}
