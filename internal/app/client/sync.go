package client

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"clubsync/internal/config"
	"clubsync/internal/domain/sync"
)

// Locker блокировка, общая для всех процессов устройства
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// Retainer очищает журнал после сеанса
type Retainer interface {
	Retain(ctx context.Context, days int) (int64, error)
}

// Outcome итог сеанса: результат может быть частичным и при ошибке
type Outcome struct {
	Result *sync.Result `json:"result,omitempty"`
	Err    error        `json:"-"`
	At     time.Time    `json:"at"`
}

// SyncStats статистика синхронизации
type SyncStats struct {
	TotalSyncs      int       `json:"total_syncs"`
	FailedSyncs     int       `json:"failed_syncs"`
	OfflineSkips    int       `json:"offline_skips"`
	LastSuccessful  time.Time `json:"last_successful"`
	LastFailed      time.Time `json:"last_failed"`
	TotalPulled     int       `json:"total_pulled"`
	TotalPushed     int       `json:"total_pushed"`
	TotalConflicts  int       `json:"total_conflicts"`
	TotalResolved   int       `json:"total_resolved"`
	TotalUnresolved int       `json:"total_unresolved"`
	TotalErrors     int       `json:"total_errors"`
	AvgSyncDuration float64   `json:"avg_sync_duration"`
}

// SyncService запускает сеансы в фоне. Одновременно выполняется не больше
// одного сеанса или ручного решения конфликта, повторный запуск сразу
// получает ErrSyncInProgress. С Locker это верно и для разных процессов
// над одной локальной базой.
type SyncService struct {
	manager       sync.Servicer
	retainer      Retainer
	lock          Locker
	interval      time.Duration
	retentionDays int
	log           *slog.Logger
	now           func() time.Time

	running atomic.Bool

	mu        gosync.RWMutex
	last      *Outcome
	stats     *SyncStats
	listeners []func(Outcome)
}

type SyncOption func(*SyncService)

// WithSessionLock добавляет межпроцессную блокировку сеанса.
func WithSessionLock(l Locker) SyncOption {
	return func(s *SyncService) {
		s.lock = l
	}
}

// NewSyncService создает новый сервис синхронизации. retainer может быть nil.
func NewSyncService(manager sync.Servicer, retainer Retainer, cfg *config.Config, log *slog.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		manager:       manager,
		retainer:      retainer,
		interval:      cfg.SyncInterval,
		retentionDays: cfg.AuditRetentionDays,
		log:           log.With("component", "sync_service"),
		now:           time.Now,
		stats:         &SyncStats{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// acquire занимает сеанс в этом процессе, затем блокировку устройства.
func (s *SyncService) acquire() error {
	if !s.running.CompareAndSwap(false, true) {
		return sync.ErrSyncInProgress
	}
	if s.lock == nil {
		return nil
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		s.running.Store(false)
		s.log.Debug("Сеанс уже выполняет другой процесс")
		return sync.ErrSyncInProgress
	}
	return nil
}

func (s *SyncService) release() {
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.log.Warn("Не удалось снять блокировку сеанса", "error", err)
		}
	}
	s.running.Store(false)
}

// Start запускает сеанс и возвращает канал, в который придёт его итог.
func (s *SyncService) Start(ctx context.Context) (<-chan Outcome, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}

	done := make(chan Outcome, 1)
	go func() {
		defer close(done)

		out := s.run(ctx)

		s.mu.Lock()
		s.last = &out
		s.updateStats(out)
		listeners := append([]func(Outcome){}, s.listeners...)
		s.mu.Unlock()

		s.release()

		for _, fn := range listeners {
			fn(out)
		}
		done <- out
	}()
	return done, nil
}

// Sync запускает сеанс и ждёт его завершения.
func (s *SyncService) Sync(ctx context.Context) (*sync.Result, error) {
	done, err := s.Start(ctx)
	if err != nil {
		return nil, err
	}
	out := <-done
	return out.Result, out.Err
}

// Conflicts возвращает записи, ожидающие ручного решения.
func (s *SyncService) Conflicts(ctx context.Context) ([]*sync.Metadata, error) {
	return s.manager.Conflicts(ctx)
}

// ResolveConflict применяет ручное решение под той же блокировкой, что и
// сеансы: решение создаёт соответствия идентификаторов и пишет в оба хранилища.
func (s *SyncService) ResolveConflict(ctx context.Context, table string, localID int64, action sync.Action) (*sync.Resolution, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	res, err := s.manager.ResolveConflict(ctx, table, localID, action)
	if err != nil {
		return nil, err
	}
	s.log.Info("Конфликт решён вручную", "table", table, "id", localID, "action", action)
	return res, nil
}

// OnComplete регистрирует обработчик итога каждого сеанса.
func (s *SyncService) OnComplete(fn func(Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SyncService) run(ctx context.Context) Outcome {
	res, err := s.manager.Synchronize(ctx)
	out := Outcome{Result: res, Err: err, At: s.now()}

	switch {
	case errors.Is(err, sync.ErrOffline):
		s.log.Info("Общее хранилище недоступно, синхронизация пропущена")
		return out
	case err != nil:
		s.log.Error("Ошибка синхронизации", "error", err)
		return out
	}

	if s.retainer != nil && s.retentionDays > 0 {
		if _, err := s.retainer.Retain(ctx, s.retentionDays); err != nil {
			s.log.Warn("Не удалось очистить журнал синхронизации", "error", err)
		}
	}
	return out
}

// updateStats вызывается под s.mu
func (s *SyncService) updateStats(out Outcome) {
	if errors.Is(out.Err, sync.ErrOffline) {
		s.stats.OfflineSkips++
		return
	}

	s.stats.TotalSyncs++
	if out.Err != nil || (out.Result != nil && !out.Result.OK()) {
		s.stats.FailedSyncs++
		s.stats.LastFailed = out.At
	} else {
		s.stats.LastSuccessful = out.At
	}

	res := out.Result
	if res == nil {
		return
	}
	s.stats.TotalPulled += res.Pulled
	s.stats.TotalPushed += res.Pushed
	s.stats.TotalConflicts += res.Conflicts
	s.stats.TotalResolved += res.Resolved
	s.stats.TotalUnresolved += res.Unresolved
	s.stats.TotalErrors += res.Failed + len(res.Errors)

	// Обновляем среднюю продолжительность
	n := float64(s.stats.TotalSyncs)
	s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*(n-1) + res.Duration().Seconds()) / n
}

// StartAutoSync запускает синхронизацию сразу и затем с интервалом из
// конфигурации, пока не отменён ctx.
func (s *SyncService) StartAutoSync(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("Автоматическая синхронизация отключена")
		return
	}

	s.log.Info("Запуск автоматической синхронизации", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("Автоматическая синхронизация остановлена")
			return
		case <-ticker.C:
		}
	}
}

func (s *SyncService) tick(ctx context.Context) {
	done, err := s.Start(ctx)
	if errors.Is(err, sync.ErrSyncInProgress) {
		s.log.Debug("Предыдущая синхронизация ещё выполняется")
		return
	}
	<-done
}

// IsSyncing проверяет, выполняется ли синхронизация
func (s *SyncService) IsSyncing() bool {
	return s.running.Load()
}

// LastOutcome возвращает итог последнего сеанса или nil.
func (s *SyncService) LastOutcome() *Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	out := *s.last
	return &out
}

// GetStats возвращает статистику синхронизации
func (s *SyncService) GetStats() *SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Возвращаем копию статистики
	statsCopy := *s.stats
	return &statsCopy
}

// ResetStats сбрасывает статистику синхронизации
func (s *SyncService) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = &SyncStats{}
}
