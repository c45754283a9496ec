package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// WithTx attaches tx to ctx. Writers that receive ctx, such as the event
// journal, join the transaction instead of using their own connection.
// A nil tx leaves ctx unchanged.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction attached with WithTx.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn returns the transaction in ctx, or fallback.
func conn(ctx context.Context, fallback Execer) Execer {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return fallback
}
