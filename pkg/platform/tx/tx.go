// Package tx threads a database transaction through context so stores can
// join an open transaction without depending on who started it.
package tx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTx stores the transaction in the context.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From retrieves the transaction from the context, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
