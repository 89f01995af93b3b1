package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and passes the
// underlying handle through tx. Repositories accept a nil tx and fall back to
// the pool.
//
// The order state machine relies on this: the conditional status update and
// the fulfillment writes it unlocks commit or roll back together.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
