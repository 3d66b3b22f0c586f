package sync

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"clubsync/internal/app/client"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/sync"
)

// Runner фоновый запуск сеансов
type Runner interface {
	Start(ctx context.Context) (<-chan client.Outcome, error)
	IsSyncing() bool
	LastOutcome() *client.Outcome
	GetStats() *client.SyncStats
}

// Resolver ручное разрешение конфликтов
type Resolver interface {
	Conflicts(ctx context.Context) ([]*sync.Metadata, error)
	ResolveConflict(ctx context.Context, table string, localID int64, action sync.Action) (*sync.Resolution, error)
}

type Handler struct {
	base       context.Context
	runner     Runner
	resolver   Resolver
	log        *slog.Logger
	middleware huma.Middlewares
}

// NewHandler создает обработчик. Сеансы, запущенные через API, живут
// в контексте base, а не в контексте запроса.
func NewHandler(base context.Context, runner Runner, resolver Resolver, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		base:       base,
		runner:     runner,
		resolver:   resolver,
		log:        log.With("component", "sync_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.startSyncOp(), h.startSync)
	huma.Register(api, h.getStatusOp(), h.getStatus)
	huma.Register(api, h.getConflictsOp(), h.getConflicts)
	huma.Register(api, h.resolveConflictOp(), h.resolveConflict)
}

func (h *Handler) startSync(_ context.Context, _ *startSyncInput) (*startSyncOutput, error) {
	if _, err := h.runner.Start(h.base); err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			return nil, huma.Error409Conflict(err.Error())
		}
		h.log.Error("failed to start sync", "error", err)
		return nil, huma.Error500InternalServerError("failed to start sync", err)
	}

	return &startSyncOutput{
		Body: StartSyncResponse{Status: "started"},
	}, nil
}

func (h *Handler) getStatus(_ context.Context, _ *getStatusInput) (*getStatusOutput, error) {
	return &getStatusOutput{
		Body: StatusResponse{
			Syncing: h.runner.IsSyncing(),
			Last:    lastSession(h.runner.LastOutcome()),
			Stats:   h.runner.GetStats(),
		},
	}, nil
}

func (h *Handler) getConflicts(ctx context.Context, _ *getConflictsInput) (*getConflictsOutput, error) {
	list, err := h.resolver.Conflicts(ctx)
	if err != nil {
		h.log.Error("failed to list conflicts", "error", err)
		return nil, huma.Error500InternalServerError("failed to list conflicts", err)
	}
	if list == nil {
		list = []*sync.Metadata{}
	}

	return &getConflictsOutput{
		Body: ConflictsResponse{Conflicts: list},
	}, nil
}

func (h *Handler) resolveConflict(ctx context.Context, input *resolveConflictInput) (*resolveConflictOutput, error) {
	action, err := sync.ParseAction(input.Body.Action)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	res, err := h.resolver.ResolveConflict(ctx, input.Table, input.ID, action)
	if err != nil {
		return nil, h.resolveError(input, err)
	}

	return &resolveConflictOutput{
		Body: ResolveResponse{
			Table:  input.Table,
			ID:     input.ID,
			Action: res.Action,
			Reason: res.Reason,
		},
	}, nil
}

func (h *Handler) resolveError(input *resolveConflictInput, err error) error {
	switch {
	case errors.Is(err, sync.ErrInvalidAction):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, sync.ErrUnknownTable),
		errors.Is(err, sync.ErrMetadataNotFound),
		errors.Is(err, record.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, sync.ErrNotInConflict),
		errors.Is(err, sync.ErrSyncInProgress),
		errors.Is(err, record.ErrStale):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, sync.ErrUnresolvedForeign):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, sync.ErrOffline):
		return huma.Error503ServiceUnavailable(err.Error())
	}

	h.log.Error("failed to resolve conflict",
		"table", input.Table, "id", input.ID, "error", err)
	return huma.Error500InternalServerError("failed to resolve conflict", err)
}
