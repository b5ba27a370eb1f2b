// Package sqlxrepos implements the grading storage ports on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

// executor returns the transaction executor passed by the caller, or db.
func executor(db *sqlx.DB, exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return db
}

func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return grading.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// mustAffect returns ErrNotFound when no row was written.
func mustAffect(res sql.Result, err error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return grading.ErrNotFound
	}
	return nil
}

func created(res sql.Result, err error, msg string) (bool, error) {
	if err != nil {
		return false, errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, msg)
	}
	return n > 0, nil
}

func nullFloat(f *float64) null.Float64 {
	return null.Float64FromPtr(f)
}

func nullDecision(d *grading.Decision) null.String {
	if d == nil {
		return null.String{}
	}
	return null.StringFrom(string(*d))
}

func decisionPtr(s null.String) *grading.Decision {
	if !s.Valid {
		return nil
	}
	return grading.Decision(s.String).Ptr()
}
