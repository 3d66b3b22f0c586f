package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) startSyncOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-start",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync",
		Summary:       "Запустить синхронизацию",
		Description:   "Запускает сеанс в фоне. Если сеанс уже идёт, возвращает 409",
		Tags:          []string{"sync"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) getStatusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Получить статус синхронизации",
		Description: "Возвращает признак активного сеанса, итог последнего сеанса и статистику",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) getConflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-conflicts",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/conflicts",
		Summary:     "Получить конфликты синхронизации",
		Description: "Возвращает записи, ожидающие ручного решения",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveConflictOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/conflicts/{table}/{id}/resolve",
		Summary:     "Разрешить конфликт",
		Description: "Применяет локальную или удалённую версию записи",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}
