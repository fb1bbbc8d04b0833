package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hostbot/internal/dbtask"
)

// Dialer opens one dedicated pgx connection per pool slot.
func Dialer(dsn string) dbtask.Dialer {
	return func(ctx context.Context) (dbtask.Conn, error) {
		c, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// pgConn unwraps a pooled connection handed to a worker.
func pgConn(c dbtask.Conn) (*pgx.Conn, error) {
	pc, ok := c.(*pgx.Conn)
	if !ok {
		return nil, errUnexpectedConn
	}
	return pc, nil
}
