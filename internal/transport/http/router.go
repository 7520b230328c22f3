package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/productr-api/internal/config"
	"github.com/productr-api/internal/transport/http/handler"
	appmiddleware "github.com/productr-api/internal/transport/http/middleware"
)

// NewRouter builds the application router. The returned stop func releases
// the rate limiter's background sweeper and is meant for shutdown.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.Logger(log, deps.Proxies))
	r.Use(appmiddleware.Recover(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	perMinute := cfg.AuthRatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	authRL := appmiddleware.PerMinute(perMinute, deps.Proxies)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.AuthService, log)

	r.NotFound(healthH.NotFound)
	r.Get("/", healthH.Root)
	r.Get("/health-check/{action}", healthH.Ping)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(authRL.Limit)

		r.Post("/request-otp", authH.RequestOTP)
		r.Post("/verify-otp", authH.VerifyOTP)
		r.With(appmiddleware.Auth(deps.Tokens)).Get("/me", authH.Me)
	})

	return r, authRL.Stop
}
