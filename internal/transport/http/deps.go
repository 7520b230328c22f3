package http

import (
	"go.uber.org/zap"

	"github.com/productr-api/internal/application/auth"
	"github.com/productr-api/internal/transport/http/middleware"
)

// Deps holds the collaborators the router wires into handlers.
type Deps struct {
	AuthService auth.Service
	Tokens      middleware.TokenVerifier
	Proxies     middleware.TrustedProxies
	Logger      *zap.Logger
}
