package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/web/handlers"
)

func (s *Server) setupRoutes(runner handlers.Runner, results handlers.ResultStore) {
	compareHandler := handlers.NewCompareHandler(runner, s.jobManager)
	historyHandler := handlers.NewHistoryHandler(results)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Comparison jobs (long-running operations)
		r.Post("/compare", compareHandler.Start)
		r.Get("/compare/{jobId}", compareHandler.Status)
		r.Get("/compare/{jobId}/events", compareHandler.Events)
		r.Delete("/compare/{jobId}", compareHandler.Cancel)

		// Persisted results
		r.Get("/comparisons", historyHandler.List)
		r.Get("/comparisons/{id}", historyHandler.Get)
	})
}
