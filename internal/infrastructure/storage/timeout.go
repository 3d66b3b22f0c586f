package storage

import (
	"context"
	"time"
)

// timeoutStore ограничивает время каждого обращения к хранилищу
type timeoutStore struct {
	Store
	timeout time.Duration
}

// WithTimeout оборачивает хранилище таймаутом на каждый запрос.
// Неположительный таймаут возвращает хранилище без изменений.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{Store: s, timeout: d}
}

func (s *timeoutStore) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.Store.Query(ctx, query, args...)
	return rows, Classify(err)
}

func (s *timeoutStore) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.Store.Execute(ctx, query, args...)
	return res, Classify(err)
}

func (s *timeoutStore) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Available(ctx)
}
