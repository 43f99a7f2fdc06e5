package alarm

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Dispatch(ctx context.Context, req *protocol.Request) (any, error)
	GlobalStatus(ctx context.Context) *protocol.GlobalStatusResponse
	Push(ctx context.Context, req *protocol.PushRequest, alarmType domain.Type) (*protocol.PushResponse, error)
	Subscribe(ctx context.Context, token string) (*protocol.TopicResponse, error)
	Unsubscribe(ctx context.Context, token string) (*protocol.TopicResponse, error)
}

// Options carries optional handlers mounted next to the API.
type Options struct {
	// Stream serves GET /api/stream when set.
	Stream http.Handler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// handler binds HTTP requests to the service.
type handler struct {
	// service runs the operations.
	service Service
}

// NewRouter builds the HTTP API.
func NewRouter(service Service, opts *Options) http.Handler {
	if opts == nil {
		opts = new(Options)
	}

	h := &handler{service: service}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	router.Route("/api", func(api chi.Router) {
		api.Use(cors)

		for _, path := range []string{"/presence", "/websocket"} {
			api.Post(path, h.dispatch)
			api.Get(path, h.globalStatus)
		}

		api.Post("/send-alarm", h.push)
		api.Post("/subscribe", h.subscribe)
		api.Post("/unsubscribe", h.unsubscribe)

		if opts.Stream != nil {
			api.Method(http.MethodGet, "/stream", opts.Stream)
		}
	})

	return router
}
