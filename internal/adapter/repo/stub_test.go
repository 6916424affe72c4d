package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return errors.New("no row")
	}
	return r.scan(dest...)
}

type stubDB struct {
	execFunc     func(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	queryRowFunc func(ctx context.Context, query string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if s.execFunc == nil {
		return pgconn.CommandTag{}, errors.New("unexpected exec")
	}
	return s.execFunc(ctx, query, args...)
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if s.queryRowFunc == nil {
		return stubRow{scan: func(dest ...any) error { return errors.New("unexpected query_row") }}
	}
	return s.queryRowFunc(ctx, query, args...)
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("unexpected query")
	}
	return s.queryFunc(ctx, query, args...)
}

// stubRows feeds a fixed sequence of scan callbacks to Query consumers.
type stubRows struct {
	stubRowsBase
	rows []func(dest ...any) error
	idx  int
	err  error
}

func (r *stubRows) Close()     {}
func (r *stubRows) Err() error { return r.err }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return r.rows[r.idx-1](dest...)
}

type stubRowsBase struct{}

func (stubRowsBase) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (stubRowsBase) Conn() *pgx.Conn                              { return nil }
func (stubRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (stubRowsBase) RawValues() [][]byte                          { return nil }

func (stubRowsBase) Values() ([]any, error) {
	return nil, errors.New("values not supported in stub rows")
}
