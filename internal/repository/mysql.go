package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// dbtx is the subset of *sql.DB and *sql.Tx used by the MySQL repositories.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxKey struct{}

// SQLTx implements TxManager on top of database/sql.  The open *sql.Tx is
// stored in the context handed to fn; repositories pick it up through conn.
type SQLTx struct {
	db *sql.DB
}

// NewSQLTx returns a TxManager bound to db.
func NewSQLTx(db *sql.DB) *SQLTx { return &SQLTx{db: db} }

var _ TxManager = (*SQLTx)(nil)

// WithTransaction begins a transaction, runs fn and commits when fn returns
// nil.  Calls nested inside an existing transaction join it.
func (t *SQLTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) dbtx {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// isDuplicate reports whether err is a MySQL duplicate-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
