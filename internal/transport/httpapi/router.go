package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/usecase/generate"
	"smartreply/internal/usecase/publish"
	"smartreply/internal/usecase/staging"
)

type Services struct {
	Staging  *staging.Service
	Generate *generate.Service
	Publish  *publish.Service
}

func NewRouter(svcs Services) http.Handler {
	h := &handler{svcs: svcs}

	r := chi.NewRouter()
	r.Use(requestID)

	r.Route("/api", func(r chi.Router) {
		r.Post("/staging", h.handleStage)
		r.Get("/staging/{token}", h.handleInspect)
		r.Delete("/staging/{token}", h.handleDelete)
		r.Post("/generate", h.handleGenerate)
		r.Post("/publish", h.handlePublish)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestID tags each request with an id in the response header and the
// context log attrs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		ctx := logging.WithAttrs(req.Context(), slog.String("request_id", id))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
