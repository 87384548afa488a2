package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP routes for the monitoring surface.
func NewRouter(status *StatusHandler, proposals *ProposalHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", status.Healthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", status.GetStatus)
		r.Get("/proposals", proposals.ListProposals)
		r.Post("/jobs/{job}/reset", status.ResetJob)
	})

	return r
}
