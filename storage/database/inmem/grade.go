package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

type gradeRepository struct {
	db *DB
}

var _ grading.GradeStore = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateElementGradeIfAbsent(_ context.Context, key grading.ElementGradeKey, _ ...core.DBExecutor) (bool, error) {
	t := repo.db.elementGrade
	t.Lock()
	defer t.Unlock()

	if _, ok := t.table[key]; ok {
		return false, nil
	}
	t.table[key] = &grading.ElementGrade{
		ID:           uuid.New(),
		StudentID:    key.StudentID,
		ElementID:    key.ElementID,
		SemesterID:   key.SemesterID,
		AcademicYear: key.AcademicYear,
	}
	return true, nil
}

func (repo *gradeRepository) CreateModuleGradeIfAbsent(_ context.Context, key grading.ModuleGradeKey, _ ...core.DBExecutor) (bool, error) {
	t := repo.db.moduleGrade
	t.Lock()
	defer t.Unlock()

	if _, ok := t.table[key]; ok {
		return false, nil
	}
	t.table[key] = &grading.ModuleGrade{
		ID:           uuid.New(),
		StudentID:    key.StudentID,
		ModuleID:     key.ModuleID,
		SemesterID:   key.SemesterID,
		AcademicYear: key.AcademicYear,
	}
	return true, nil
}

func (repo *gradeRepository) CreateSemesterGradeIfAbsent(_ context.Context, key grading.SemesterGradeKey, _ ...core.DBExecutor) (bool, error) {
	t := repo.db.semesterGrade
	t.Lock()
	defer t.Unlock()

	if _, ok := t.table[key]; ok {
		return false, nil
	}
	t.table[key] = &grading.SemesterGrade{
		ID:           uuid.New(),
		StudentID:    key.StudentID,
		SemesterID:   key.SemesterID,
		AcademicYear: key.AcademicYear,
	}
	return true, nil
}

func (repo *gradeRepository) CreateYearGradeIfAbsent(_ context.Context, key grading.YearGradeKey, _ ...core.DBExecutor) (bool, error) {
	t := repo.db.yearGrade
	t.Lock()
	defer t.Unlock()

	if _, ok := t.table[key]; ok {
		return false, nil
	}
	t.table[key] = &grading.YearGrade{
		ID:           uuid.New(),
		StudentID:    key.StudentID,
		AcademicYear: key.AcademicYear,
	}
	return true, nil
}

func (repo *gradeRepository) GetElementGrade(_ context.Context, key grading.ElementGradeKey, _ ...core.DBExecutor) (grading.ElementGrade, error) {
	t := repo.db.elementGrade
	t.RLock()
	defer t.RUnlock()

	if g, ok := t.table[key]; ok {
		return cloneElementGrade(*g), nil
	}
	return grading.ElementGrade{}, grading.ErrNotFound
}

func (repo *gradeRepository) QueryElementGrades(_ context.Context, key grading.SemesterGradeKey, _ ...core.DBExecutor) ([]grading.ElementGrade, error) {
	t := repo.db.elementGrade
	t.RLock()
	defer t.RUnlock()

	res := make([]grading.ElementGrade, 0)
	for k, g := range t.table {
		if k.StudentID == key.StudentID && k.SemesterID == key.SemesterID && k.AcademicYear == key.AcademicYear {
			res = append(res, cloneElementGrade(*g))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ElementID < res[j].ElementID })
	return res, nil
}

func (repo *gradeRepository) UpdateElementGradeScores(_ context.Context, g grading.ElementGrade, _ ...core.DBExecutor) error {
	t := repo.db.elementGrade
	t.Lock()
	defer t.Unlock()

	orig, ok := t.table[g.Key()]
	if !ok {
		return grading.ErrNotFound
	}
	orig.TP = cloneFloat(g.TP)
	orig.CC = cloneFloat(g.CC)
	orig.Exam = cloneFloat(g.Exam)
	orig.Makeup = cloneFloat(g.Makeup)
	return nil
}

func (repo *gradeRepository) UpdateElementGradeResult(_ context.Context, g grading.ElementGrade, _ ...core.DBExecutor) error {
	t := repo.db.elementGrade
	t.Lock()
	defer t.Unlock()

	orig, ok := t.table[g.Key()]
	if !ok {
		return grading.ErrNotFound
	}
	orig.Final = cloneFloat(g.Final)
	orig.Decision = cloneDecision(g.Decision)
	orig.MakeupDecision = cloneDecision(g.MakeupDecision)
	return nil
}

func (repo *gradeRepository) QueryModuleGrades(_ context.Context, key grading.SemesterGradeKey, _ ...core.DBExecutor) ([]grading.ModuleGrade, error) {
	t := repo.db.moduleGrade
	t.RLock()
	defer t.RUnlock()

	res := make([]grading.ModuleGrade, 0)
	for k, g := range t.table {
		if k.StudentID == key.StudentID && k.SemesterID == key.SemesterID && k.AcademicYear == key.AcademicYear {
			mg := *g
			mg.Final, mg.Decision = cloneFloat(g.Final), cloneDecision(g.Decision)
			res = append(res, mg)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ModuleID < res[j].ModuleID })
	return res, nil
}

func (repo *gradeRepository) UpdateModuleGradeResult(_ context.Context, g grading.ModuleGrade, _ ...core.DBExecutor) error {
	t := repo.db.moduleGrade
	t.Lock()
	defer t.Unlock()

	orig, ok := t.table[g.Key()]
	if !ok {
		return grading.ErrNotFound
	}
	orig.Final = cloneFloat(g.Final)
	orig.Decision = cloneDecision(g.Decision)
	return nil
}

func (repo *gradeRepository) GetSemesterGrade(_ context.Context, key grading.SemesterGradeKey, _ ...core.DBExecutor) (grading.SemesterGrade, error) {
	t := repo.db.semesterGrade
	t.RLock()
	defer t.RUnlock()

	if g, ok := t.table[key]; ok {
		sg := *g
		sg.Final, sg.Decision = cloneFloat(g.Final), cloneDecision(g.Decision)
		return sg, nil
	}
	return grading.SemesterGrade{}, grading.ErrNotFound
}

func (repo *gradeRepository) QuerySemesterGrades(_ context.Context, key grading.YearGradeKey, _ ...core.DBExecutor) ([]grading.SemesterGrade, error) {
	t := repo.db.semesterGrade
	t.RLock()
	defer t.RUnlock()

	res := make([]grading.SemesterGrade, 0)
	for k, g := range t.table {
		if k.StudentID == key.StudentID && k.AcademicYear == key.AcademicYear {
			sg := *g
			sg.Final, sg.Decision = cloneFloat(g.Final), cloneDecision(g.Decision)
			res = append(res, sg)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SemesterID < res[j].SemesterID })
	return res, nil
}

func (repo *gradeRepository) UpdateSemesterGradeResult(_ context.Context, g grading.SemesterGrade, _ ...core.DBExecutor) error {
	t := repo.db.semesterGrade
	t.Lock()
	defer t.Unlock()

	orig, ok := t.table[g.Key()]
	if !ok {
		return grading.ErrNotFound
	}
	orig.Final = cloneFloat(g.Final)
	orig.Decision = cloneDecision(g.Decision)
	orig.FailedModules = g.FailedModules
	return nil
}

func (repo *gradeRepository) GetYearGrade(_ context.Context, key grading.YearGradeKey, _ ...core.DBExecutor) (grading.YearGrade, error) {
	t := repo.db.yearGrade
	t.RLock()
	defer t.RUnlock()

	if g, ok := t.table[key]; ok {
		yg := *g
		yg.Final, yg.Decision = cloneFloat(g.Final), cloneDecision(g.Decision)
		return yg, nil
	}
	return grading.YearGrade{}, grading.ErrNotFound
}

func (repo *gradeRepository) UpdateYearGradeResult(_ context.Context, g grading.YearGrade, _ ...core.DBExecutor) error {
	t := repo.db.yearGrade
	t.Lock()
	defer t.Unlock()

	orig, ok := t.table[g.Key()]
	if !ok {
		return grading.ErrNotFound
	}
	orig.Final = cloneFloat(g.Final)
	orig.Decision = cloneDecision(g.Decision)
	return nil
}

// Counts returns the number of grade records stored per level.
func (repo *gradeRepository) Counts() grading.RowCounts {
	var c grading.RowCounts
	repo.db.elementGrade.RLock()
	c.Elements = len(repo.db.elementGrade.table)
	repo.db.elementGrade.RUnlock()
	repo.db.moduleGrade.RLock()
	c.Modules = len(repo.db.moduleGrade.table)
	repo.db.moduleGrade.RUnlock()
	repo.db.semesterGrade.RLock()
	c.Semesters = len(repo.db.semesterGrade.table)
	repo.db.semesterGrade.RUnlock()
	repo.db.yearGrade.RLock()
	c.Years = len(repo.db.yearGrade.table)
	repo.db.yearGrade.RUnlock()
	return c
}

func cloneElementGrade(g grading.ElementGrade) grading.ElementGrade {
	g.TP, g.CC, g.Exam, g.Makeup = cloneFloat(g.TP), cloneFloat(g.CC), cloneFloat(g.Exam), cloneFloat(g.Makeup)
	g.Final = cloneFloat(g.Final)
	g.Decision, g.MakeupDecision = cloneDecision(g.Decision), cloneDecision(g.MakeupDecision)
	return g
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneDecision(d *grading.Decision) *grading.Decision {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
