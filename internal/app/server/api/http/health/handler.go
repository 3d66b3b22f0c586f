package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const (
	RemoteOnline  = "online"
	RemoteOffline = "offline"
)

// Checker проверка доступности удалённого хранилища
type Checker interface {
	RemoteAvailable(ctx context.Context) bool
}

type Handler struct {
	checker    Checker
	deviceID   string
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(checker Checker, deviceID string, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		checker:    checker,
		deviceID:   deviceID,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

// healthCheck отвечает OK и при недоступном общем хранилище.
func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	remote := RemoteOffline
	if h.checker.RemoteAvailable(ctx) {
		remote = RemoteOnline
	}

	return &Output{
		Body: Response{
			Status:   "OK",
			Remote:   remote,
			DeviceID: h.deviceID,
		},
	}, nil
}
