package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

type (
	// DB is an in-memory grade database, for tests & local development.
	// Transactions are serialized. A failed one restores the grade tables as they were when it began,
	// discarding any write made meanwhile outside of a transaction.
	DB struct {
		txMu sync.Mutex

		enrollment    *enrollmentTable
		module        *moduleTable
		elementGrade  *elementGradeTable
		moduleGrade   *moduleGradeTable
		semesterGrade *semesterGradeTable
		yearGrade     *yearGradeTable
	}

	enrollmentTable struct {
		sync.RWMutex
		table []grading.Enrollment
	}

	moduleTable struct {
		sync.RWMutex
		table map[int64]*grading.Module
	}

	elementGradeTable struct {
		sync.RWMutex
		table map[grading.ElementGradeKey]*grading.ElementGrade
	}

	moduleGradeTable struct {
		sync.RWMutex
		table map[grading.ModuleGradeKey]*grading.ModuleGrade
	}

	semesterGradeTable struct {
		sync.RWMutex
		table map[grading.SemesterGradeKey]*grading.SemesterGrade
	}

	yearGradeTable struct {
		sync.RWMutex
		table map[grading.YearGradeKey]*grading.YearGrade
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		enrollment:    &enrollmentTable{},
		module:        &moduleTable{table: make(map[int64]*grading.Module)},
		elementGrade:  &elementGradeTable{table: make(map[grading.ElementGradeKey]*grading.ElementGrade)},
		moduleGrade:   &moduleGradeTable{table: make(map[grading.ModuleGradeKey]*grading.ModuleGrade)},
		semesterGrade: &semesterGradeTable{table: make(map[grading.SemesterGradeKey]*grading.SemesterGrade)},
		yearGrade:     &yearGradeTable{table: make(map[grading.YearGradeKey]*grading.YearGrade)},
	}
	return db, nil
}

// WithinTx runs fn while holding the DB transaction lock. fn receives a nil executor.
// The grade tables are rolled back when fn returns an error or panics.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.restore(snap)
			panic(p)
		}
		if err != nil {
			db.restore(snap)
		}
	}()
	return fn(nil)
}

type gradeSnapshot struct {
	elementGrade  map[grading.ElementGradeKey]*grading.ElementGrade
	moduleGrade   map[grading.ModuleGradeKey]*grading.ModuleGrade
	semesterGrade map[grading.SemesterGradeKey]*grading.SemesterGrade
	yearGrade     map[grading.YearGradeKey]*grading.YearGrade
}

func (db *DB) snapshot() gradeSnapshot {
	var snap gradeSnapshot

	db.elementGrade.RLock()
	snap.elementGrade = cloneRows(db.elementGrade.table)
	db.elementGrade.RUnlock()

	db.moduleGrade.RLock()
	snap.moduleGrade = cloneRows(db.moduleGrade.table)
	db.moduleGrade.RUnlock()

	db.semesterGrade.RLock()
	snap.semesterGrade = cloneRows(db.semesterGrade.table)
	db.semesterGrade.RUnlock()

	db.yearGrade.RLock()
	snap.yearGrade = cloneRows(db.yearGrade.table)
	db.yearGrade.RUnlock()

	return snap
}

func (db *DB) restore(snap gradeSnapshot) {
	db.elementGrade.Lock()
	db.elementGrade.table = snap.elementGrade
	db.elementGrade.Unlock()

	db.moduleGrade.Lock()
	db.moduleGrade.table = snap.moduleGrade
	db.moduleGrade.Unlock()

	db.semesterGrade.Lock()
	db.semesterGrade.table = snap.semesterGrade
	db.semesterGrade.Unlock()

	db.yearGrade.Lock()
	db.yearGrade.table = snap.yearGrade
	db.yearGrade.Unlock()
}

// cloneRows copies the rows of a table. Updates replace the pointer fields of a row, so a shallow copy is enough.
func cloneRows[K comparable, V any](table map[K]*V) map[K]*V {
	rows := make(map[K]*V, len(table))
	for k, v := range table {
		row := *v
		rows[k] = &row
	}
	return rows
}
