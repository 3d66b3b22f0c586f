// Package postgres общее удалённое хранилище на PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"clubsync/internal/infrastructure/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

// Open создаёт пул соединений. Подключение откладывается до первого запроса,
// поэтому недоступный сервер не мешает работе офлайн.
func Open(ctx context.Context, uri string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parse database uri: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// URIWithPassword подставляет пароль в строку подключения.
func URIWithPassword(uri, password string) (string, error) {
	if password == "" {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse database uri: %w", err)
	}
	name := ""
	if u.User != nil {
		name = u.User.Username()
	}
	u.User = url.UserPassword(name, password)
	return u.String(), nil
}

// Rebind заменяет плейсхолдеры ? на $1, $2, ... вне строковых литералов.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
	rows, err := s.pool.Query(ctx, Rebind(query), args...)
	if err != nil {
		return nil, storage.Classify(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []storage.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(storage.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify(err)
	}
	return out, nil
}

func (s *Store) Execute(ctx context.Context, query string, args ...any) (storage.Result, error) {
	query = Rebind(query)

	if strings.Contains(strings.ToUpper(query), " RETURNING ") {
		var id int64
		err := s.pool.QueryRow(ctx, query, args...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Result{}, nil
		}
		if err != nil {
			return storage.Result{}, storage.Classify(err)
		}
		return storage.Result{RowsAffected: 1, GeneratedID: id}, nil
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return storage.Result{}, storage.Classify(err)
	}
	return storage.Result{RowsAffected: tag.RowsAffected()}, nil
}

func (s *Store) Available(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

func (s *Store) Dialect() storage.Dialect {
	return storage.DialectPostgres
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
