package baseline

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the baseline workflow API routes.
// Identity middleware is expected to run before this router.
func NewRouter(svc *Service) chi.Router {
	r := chi.NewRouter()

	r.Route("/portfolios/{portfolioId}", func(r chi.Router) {
		r.Post("/versions", createDraftHandler(svc))
		r.Get("/versions", listVersionsHandler(svc))
	})

	r.Route("/versions/{id}", func(r chi.Router) {
		r.Get("/", getVersionHandler(svc))
		r.Put("/modules/{moduleType}", editModuleHandler(svc))
		r.Post("/submit", submitHandler(svc))
		r.Post("/approve", approveHandler(svc))
		r.Post("/reject", rejectHandler(svc))
	})

	r.Get("/approvals/pending", pendingApprovalsHandler(svc))

	return r
}
