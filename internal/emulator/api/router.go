package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/session"
	"github.com/verenigingen/eboekhouden-sync/internal/emulator/store"
)

// NewRouter wires all emulator endpoints.
func NewRouter(st *store.Store, sessions *session.Manager, extra ...func(http.Handler) http.Handler) http.Handler {
	sessionHandler := NewSessionHandler(sessions)
	mutationsHandler := NewMutationsHandler(st)
	ledgersHandler := NewLedgersHandler(st)
	relationsHandler := NewRelationsHandler(st)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	for _, mw := range extra {
		r.Use(mw)
	}

	r.Route("/v1", func(r chi.Router) {
		// Session creation needs no authentication.
		r.Post("/session", sessionHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(sessions))

			r.Delete("/session", sessionHandler.Delete)

			r.Route("/mutation", func(r chi.Router) {
				r.Get("/", mutationsHandler.List)
				r.Post("/", mutationsHandler.Create)
				r.Get("/{id}", mutationsHandler.Get)
			})

			r.Route("/ledger", func(r chi.Router) {
				r.Get("/", ledgersHandler.List)
				r.Post("/", ledgersHandler.Create)
			})

			r.Route("/relation", func(r chi.Router) {
				r.Post("/", relationsHandler.Create)
				r.Get("/{id}", relationsHandler.Get)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
