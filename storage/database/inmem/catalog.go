package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/deliberation/core/grading"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ grading.EnrollmentLookup = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db.enrollment}
}

// AddEnrollments stores enrollments as is.
func (repo *enrollmentRepository) AddEnrollments(enrollments ...grading.Enrollment) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table = append(repo.db.table, enrollments...)
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, scope grading.Scope) ([]grading.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]grading.Enrollment, 0)
	for _, enr := range repo.db.table {
		if enr.SemesterID == scope.SemesterID && enr.AcademicYear == scope.AcademicYear {
			res = append(res, enr)
		}
	}
	return res, nil
}

func (repo *enrollmentRepository) QueryYearEnrollments(_ context.Context, academicYear string) ([]grading.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]grading.Enrollment, 0)
	for _, enr := range repo.db.table {
		if enr.AcademicYear == academicYear {
			res = append(res, enr)
		}
	}
	return res, nil
}

type catalogRepository struct {
	db *moduleTable
}

var _ grading.CatalogLookup = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db.module}
}

// AddModules stores (or replaces) modules along with their elements.
func (repo *catalogRepository) AddModules(modules ...grading.Module) {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, mod := range modules {
		mod := mod
		mod.Elements = append([]grading.Element(nil), mod.Elements...)
		for i := range mod.Elements {
			mod.Elements[i].ModuleID = mod.ID
		}
		repo.db.table[mod.ID] = &mod
	}
}

func (repo *catalogRepository) QueryModules(_ context.Context, fieldID int64, scope grading.Scope) ([]grading.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]grading.Module, 0)
	for _, mod := range repo.db.table {
		if mod.FieldID == fieldID && mod.SemesterID == scope.SemesterID && mod.AcademicYear == scope.AcademicYear {
			m := *mod
			m.Elements = append([]grading.Element(nil), mod.Elements...)
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
