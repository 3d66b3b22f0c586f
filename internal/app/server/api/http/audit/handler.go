package audit

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"clubsync/internal/domain/audit"
)

// Servicer чтение и очистка журнала синхронизации
type Servicer interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
	Failed(ctx context.Context, limit int) ([]audit.Entry, error)
	Retain(ctx context.Context, days int) (int64, error)
}

type Handler struct {
	service    Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "audit_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.recentOp(), h.recent)
	huma.Register(api, h.failedOp(), h.failed)
	huma.Register(api, h.pruneOp(), h.prune)
}

func (h *Handler) recent(ctx context.Context, input *listInput) (*listOutput, error) {
	return h.list(ctx, input.Limit, h.service.Recent)
}

func (h *Handler) failed(ctx context.Context, input *listInput) (*listOutput, error) {
	return h.list(ctx, input.Limit, h.service.Failed)
}

func (h *Handler) list(ctx context.Context, limit int, fetch func(context.Context, int) ([]audit.Entry, error)) (*listOutput, error) {
	entries, err := fetch(ctx, limit)
	if err != nil {
		h.log.Error("failed to read audit log", "error", err)
		return nil, huma.Error500InternalServerError("failed to read audit log", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return &listOutput{Body: ListResponse{Entries: entries}}, nil
}

func (h *Handler) prune(ctx context.Context, input *pruneInput) (*pruneOutput, error) {
	removed, err := h.service.Retain(ctx, input.Days)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidRetention) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		h.log.Error("failed to prune audit log", "days", input.Days, "error", err)
		return nil, huma.Error500InternalServerError("failed to prune audit log", err)
	}
	return &pruneOutput{Body: PruneResponse{Removed: removed}}, nil
}
