package client

import (
	"context"
	"errors"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/sync"
	"clubsync/internal/infrastructure/storage"
)

// UserMessage переводит техническую ошибку в сообщение для человека.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sync.ErrSyncInProgress):
		return "Синхронизация уже выполняется. Дождитесь её завершения"
	case errors.Is(err, sync.ErrOffline):
		return "Общее хранилище недоступно. Изменения сохранены на этом устройстве и будут отправлены при следующей синхронизации"
	case errors.Is(err, storage.ErrAuth):
		return "Общее хранилище отклонило имя пользователя или пароль. Проверьте параметры подключения"
	case errors.Is(err, storage.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Общее хранилище не ответило вовремя. Попробуйте ещё раз позже"
	case errors.Is(err, storage.ErrUnreachable):
		return "Не удалось связаться с общим хранилищем. Проверьте подключение к сети и адрес сервера"
	case errors.Is(err, storage.ErrSchema):
		return "Структура базы данных устарела. Выполните команду init, чтобы обновить её"
	case errors.Is(err, context.Canceled):
		return "Синхронизация прервана"
	case errors.Is(err, sync.ErrNotInConflict):
		return "Запись не ожидает решения конфликта"
	case errors.Is(err, sync.ErrUnresolvedForeign):
		return "Запись ссылается на данные, которые ещё не синхронизированы. Сначала синхронизируйте их"
	case errors.Is(err, sync.ErrMetadataNotFound):
		return "Запись ещё ни разу не синхронизировалась"
	case errors.Is(err, record.ErrNotFound):
		return "Запись не найдена"
	case errors.Is(err, record.ErrStale):
		return "Запись изменили во время операции. Новая правка сохранена и будет отправлена при следующей синхронизации"
	case errors.Is(err, record.ErrRecordDeleted):
		return "Запись удалена и не может быть изменена"
	case errors.Is(err, record.ErrUnknownTable), errors.Is(err, sync.ErrUnknownTable):
		return "Неизвестная таблица"
	case errors.Is(err, record.ErrInvalidData):
		return "Некорректные данные записи"
	case errors.Is(err, sync.ErrInvalidAction):
		return "Неизвестное действие. Используйте local или remote"
	case errors.Is(err, audit.ErrInvalidRetention):
		return "Срок хранения журнала должен быть положительным числом дней"
	default:
		return "Операция не выполнена. Подробности записаны в журнал"
	}
}
