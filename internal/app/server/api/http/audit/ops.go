package audit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) recentOp() huma.Operation {
	return huma.Operation{
		OperationID: "audit-recent",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit",
		Summary:     "Последние записи журнала",
		Description: "Возвращает записи журнала синхронизации, новые первыми",
		Tags:        []string{"audit"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) failedOp() huma.Operation {
	return huma.Operation{
		OperationID: "audit-failed",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit/failed",
		Summary:     "Неуспешные операции",
		Description: "Возвращает записи журнала со статусом FAILED",
		Tags:        []string{"audit"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) pruneOp() huma.Operation {
	return huma.Operation{
		OperationID: "audit-prune",
		Method:      http.MethodDelete,
		Path:        "/api/v1/audit",
		Summary:     "Очистить журнал",
		Description: "Удаляет записи старше заданного числа дней",
		Tags:        []string{"audit"},
		Middlewares: h.middleware,
	}
}
