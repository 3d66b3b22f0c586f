package storage

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrUnreachable = errors.New("store is unreachable")
	ErrAuth        = errors.New("store rejected credentials")
	ErrTimeout     = errors.New("store request timed out")
	ErrSchema      = errors.New("store schema mismatch")
)

// classified сохраняет исходную ошибку и добавляет к ней категорию
type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string {
	return c.kind.Error() + ": " + c.err.Error()
}

func (c *classified) Unwrap() []error {
	return []error{c.kind, c.err}
}

// Classify относит ошибку драйвера к одной из категорий. Ошибка без
// известной категории возвращается как есть.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrUnreachable, ErrAuth, ErrTimeout, ErrSchema} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if kind := kindOf(err); kind != nil {
		return &classified{kind: kind, err: err}
	}
	return err
}

func kindOf(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return ErrTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return ErrAuth
		case pgErr.Code == "42P01" || pgErr.Code == "42703" || pgErr.Code == "42883":
			return ErrSchema
		case strings.HasPrefix(pgErr.Code, "08"):
			return ErrUnreachable
		}
		return nil
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrUnreachable
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.Code == sqlite3.ErrCantOpen || liteErr.Code == sqlite3.ErrNotADB:
			return ErrUnreachable
		case strings.Contains(liteErr.Error(), "no such table") || strings.Contains(liteErr.Error(), "no such column"):
			return ErrSchema
		}
	}
	return nil
}
