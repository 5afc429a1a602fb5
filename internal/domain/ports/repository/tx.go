package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// driver-specific handle to it as tx.
//
// Repositories accept the same tx so a use case can group several writes
// (for example "mark row completed" + "increment processed") atomically
// without transaction types leaking into the use case layer.
//
// Repositories MUST gracefully accept a nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
