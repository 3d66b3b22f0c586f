package audit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Service журнал только на добавление. Запись в зеркало выполняется
// по возможности: её ошибка логируется и не возвращается.
type Service struct {
	repo   Repository
	mirror Mirror
	now    func() time.Time
	log    *slog.Logger
}

// NewService создает сервис журнала. mirror может быть nil.
func NewService(repo Repository, mirror Mirror, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		mirror: mirror,
		now:    time.Now,
		log:    log.With("component", "audit_service"),
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)

	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Append(ctx, e); err != nil {
			s.log.Warn("failed to mirror audit entry",
				"session_id", e.SessionID, "table", e.Table, "record_id", e.RecordID, "error", err)
		}
	}
	return nil
}

// Recent возвращает последние записи, новые первыми.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.repo.Recent(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent audit entries: %w", err)
	}
	return entries, nil
}

// Failed возвращает неуспешные записи, новые первыми.
func (s *Service) Failed(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.repo.Failed(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed audit entries: %w", err)
	}
	return entries, nil
}

// Retain удаляет записи старше days дней.
func (s *Service) Retain(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	removed, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit log: %w", err)
	}

	if removed > 0 {
		s.log.Info("audit log pruned", "removed", removed, "older_than", cutoff)
	}
	return removed, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
