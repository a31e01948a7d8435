// Package repository holds the MySQL data access code. Handlers and
// middleware translate the sentinels below into application errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup or scoped mutation matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint: a
// duplicate username, email or plate, a port number taken by a concurrent
// insert, or a second active subscription.
var ErrConflict = errors.New("conflict")

// ErrPortOccupied is returned when deleting a port that is in use.
var ErrPortOccupied = errors.New("port is occupied")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execOne treats zero matched rows as ErrNotFound. The DSN sets
// clientFoundRows, so an update that rewrites identical values still counts.
func execOne(ctx context.Context, db execer, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// withTx runs fn inside a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

func nullUint64(p *uint64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
