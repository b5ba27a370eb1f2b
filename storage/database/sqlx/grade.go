package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

type gradeRepository struct {
	db *sqlx.DB
}

var _ grading.GradeStore = (*gradeRepository)(nil)

func NewGradeRepository(db *sqlx.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

type (
	elementGradeRow struct {
		ID             uuid.UUID    `db:"id"`
		StudentID      int64        `db:"student_id"`
		ElementID      int64        `db:"element_id"`
		SemesterID     int          `db:"semester_id"`
		AcademicYear   string       `db:"academic_year"`
		TP             null.Float64 `db:"tp"`
		CC             null.Float64 `db:"cc"`
		Exam           null.Float64 `db:"exam"`
		Makeup         null.Float64 `db:"makeup"`
		Final          null.Float64 `db:"final"`
		Decision       null.String  `db:"decision"`
		MakeupDecision null.String  `db:"makeup_decision"`
	}

	moduleGradeRow struct {
		ID           uuid.UUID    `db:"id"`
		StudentID    int64        `db:"student_id"`
		ModuleID     int64        `db:"module_id"`
		SemesterID   int          `db:"semester_id"`
		AcademicYear string       `db:"academic_year"`
		Final        null.Float64 `db:"final"`
		Decision     null.String  `db:"decision"`
	}

	semesterGradeRow struct {
		ID            uuid.UUID    `db:"id"`
		StudentID     int64        `db:"student_id"`
		SemesterID    int          `db:"semester_id"`
		AcademicYear  string       `db:"academic_year"`
		Final         null.Float64 `db:"final"`
		Decision      null.String  `db:"decision"`
		FailedModules int          `db:"failed_modules"`
	}

	yearGradeRow struct {
		ID           uuid.UUID    `db:"id"`
		StudentID    int64        `db:"student_id"`
		AcademicYear string       `db:"academic_year"`
		Final        null.Float64 `db:"final"`
		Decision     null.String  `db:"decision"`
	}
)

func (r elementGradeRow) toGrade() grading.ElementGrade {
	return grading.ElementGrade{
		ID:             r.ID,
		StudentID:      r.StudentID,
		ElementID:      r.ElementID,
		SemesterID:     r.SemesterID,
		AcademicYear:   r.AcademicYear,
		TP:             r.TP.Ptr(),
		CC:             r.CC.Ptr(),
		Exam:           r.Exam.Ptr(),
		Makeup:         r.Makeup.Ptr(),
		Final:          r.Final.Ptr(),
		Decision:       decisionPtr(r.Decision),
		MakeupDecision: decisionPtr(r.MakeupDecision),
	}
}

func (r moduleGradeRow) toGrade() grading.ModuleGrade {
	return grading.ModuleGrade{
		ID:           r.ID,
		StudentID:    r.StudentID,
		ModuleID:     r.ModuleID,
		SemesterID:   r.SemesterID,
		AcademicYear: r.AcademicYear,
		Final:        r.Final.Ptr(),
		Decision:     decisionPtr(r.Decision),
	}
}

func (r semesterGradeRow) toGrade() grading.SemesterGrade {
	return grading.SemesterGrade{
		ID:            r.ID,
		StudentID:     r.StudentID,
		SemesterID:    r.SemesterID,
		AcademicYear:  r.AcademicYear,
		Final:         r.Final.Ptr(),
		Decision:      decisionPtr(r.Decision),
		FailedModules: r.FailedModules,
	}
}

func (r yearGradeRow) toGrade() grading.YearGrade {
	return grading.YearGrade{
		ID:           r.ID,
		StudentID:    r.StudentID,
		AcademicYear: r.AcademicYear,
		Final:        r.Final.Ptr(),
		Decision:     decisionPtr(r.Decision),
	}
}

// Create

func (repo *gradeRepository) CreateElementGradeIfAbsent(ctx context.Context, key grading.ElementGradeKey, exec ...core.DBExecutor) (bool, error) {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`INSERT INTO element_grade (id, student_id, element_id, semester_id, academic_year)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		uuid.New(), key.StudentID, key.ElementID, key.SemesterID, key.AcademicYear)
	return created(res, err, "inserting element grade")
}

func (repo *gradeRepository) CreateModuleGradeIfAbsent(ctx context.Context, key grading.ModuleGradeKey, exec ...core.DBExecutor) (bool, error) {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`INSERT INTO module_grade (id, student_id, module_id, semester_id, academic_year)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		uuid.New(), key.StudentID, key.ModuleID, key.SemesterID, key.AcademicYear)
	return created(res, err, "inserting module grade")
}

func (repo *gradeRepository) CreateSemesterGradeIfAbsent(ctx context.Context, key grading.SemesterGradeKey, exec ...core.DBExecutor) (bool, error) {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`INSERT INTO semester_grade (id, student_id, semester_id, academic_year)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		uuid.New(), key.StudentID, key.SemesterID, key.AcademicYear)
	return created(res, err, "inserting semester grade")
}

func (repo *gradeRepository) CreateYearGradeIfAbsent(ctx context.Context, key grading.YearGradeKey, exec ...core.DBExecutor) (bool, error) {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`INSERT INTO year_grade (id, student_id, academic_year) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		uuid.New(), key.StudentID, key.AcademicYear)
	return created(res, err, "inserting year grade")
}

// Element grades

const elementGradeColumns = `id, student_id, element_id, semester_id, academic_year,
	tp, cc, exam, makeup, final, decision, makeup_decision`

func (repo *gradeRepository) GetElementGrade(ctx context.Context, key grading.ElementGradeKey, exec ...core.DBExecutor) (grading.ElementGrade, error) {
	var row elementGradeRow
	err := executor(repo.db, exec).GetContext(ctx, &row,
		`SELECT `+elementGradeColumns+` FROM element_grade
		WHERE student_id = $1 AND element_id = $2 AND semester_id = $3 AND academic_year = $4`,
		key.StudentID, key.ElementID, key.SemesterID, key.AcademicYear)
	if err != nil {
		return grading.ElementGrade{}, notFound(err, "getting element grade")
	}
	return row.toGrade(), nil
}

func (repo *gradeRepository) QueryElementGrades(ctx context.Context, key grading.SemesterGradeKey, exec ...core.DBExecutor) ([]grading.ElementGrade, error) {
	rows := make([]elementGradeRow, 0)
	err := executor(repo.db, exec).SelectContext(ctx, &rows,
		`SELECT `+elementGradeColumns+` FROM element_grade
		WHERE student_id = $1 AND semester_id = $2 AND academic_year = $3 ORDER BY element_id`,
		key.StudentID, key.SemesterID, key.AcademicYear)
	if err != nil {
		return nil, errors.Wrap(err, "selecting element grades")
	}
	res := make([]grading.ElementGrade, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toGrade())
	}
	return res, nil
}

func (repo *gradeRepository) UpdateElementGradeScores(ctx context.Context, g grading.ElementGrade, exec ...core.DBExecutor) error {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`UPDATE element_grade SET tp = $5, cc = $6, exam = $7, makeup = $8
		WHERE student_id = $1 AND element_id = $2 AND semester_id = $3 AND academic_year = $4`,
		g.StudentID, g.ElementID, g.SemesterID, g.AcademicYear,
		nullFloat(g.TP), nullFloat(g.CC), nullFloat(g.Exam), nullFloat(g.Makeup))
	return mustAffect(res, err, "updating element grade scores")
}

func (repo *gradeRepository) UpdateElementGradeResult(ctx context.Context, g grading.ElementGrade, exec ...core.DBExecutor) error {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`UPDATE element_grade SET final = $5, decision = $6, makeup_decision = $7
		WHERE student_id = $1 AND element_id = $2 AND semester_id = $3 AND academic_year = $4`,
		g.StudentID, g.ElementID, g.SemesterID, g.AcademicYear,
		nullFloat(g.Final), nullDecision(g.Decision), nullDecision(g.MakeupDecision))
	return mustAffect(res, err, "updating element grade result")
}

// Module grades

func (repo *gradeRepository) QueryModuleGrades(ctx context.Context, key grading.SemesterGradeKey, exec ...core.DBExecutor) ([]grading.ModuleGrade, error) {
	rows := make([]moduleGradeRow, 0)
	err := executor(repo.db, exec).SelectContext(ctx, &rows,
		`SELECT id, student_id, module_id, semester_id, academic_year, final, decision FROM module_grade
		WHERE student_id = $1 AND semester_id = $2 AND academic_year = $3 ORDER BY module_id`,
		key.StudentID, key.SemesterID, key.AcademicYear)
	if err != nil {
		return nil, errors.Wrap(err, "selecting module grades")
	}
	res := make([]grading.ModuleGrade, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toGrade())
	}
	return res, nil
}

func (repo *gradeRepository) UpdateModuleGradeResult(ctx context.Context, g grading.ModuleGrade, exec ...core.DBExecutor) error {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`UPDATE module_grade SET final = $5, decision = $6
		WHERE student_id = $1 AND module_id = $2 AND semester_id = $3 AND academic_year = $4`,
		g.StudentID, g.ModuleID, g.SemesterID, g.AcademicYear, nullFloat(g.Final), nullDecision(g.Decision))
	return mustAffect(res, err, "updating module grade result")
}

// Semester grades

const semesterGradeColumns = `id, student_id, semester_id, academic_year, final, decision, failed_modules`

func (repo *gradeRepository) GetSemesterGrade(ctx context.Context, key grading.SemesterGradeKey, exec ...core.DBExecutor) (grading.SemesterGrade, error) {
	var row semesterGradeRow
	err := executor(repo.db, exec).GetContext(ctx, &row,
		`SELECT `+semesterGradeColumns+` FROM semester_grade
		WHERE student_id = $1 AND semester_id = $2 AND academic_year = $3`,
		key.StudentID, key.SemesterID, key.AcademicYear)
	if err != nil {
		return grading.SemesterGrade{}, notFound(err, "getting semester grade")
	}
	return row.toGrade(), nil
}

func (repo *gradeRepository) QuerySemesterGrades(ctx context.Context, key grading.YearGradeKey, exec ...core.DBExecutor) ([]grading.SemesterGrade, error) {
	rows := make([]semesterGradeRow, 0)
	err := executor(repo.db, exec).SelectContext(ctx, &rows,
		`SELECT `+semesterGradeColumns+` FROM semester_grade
		WHERE student_id = $1 AND academic_year = $2 ORDER BY semester_id`,
		key.StudentID, key.AcademicYear)
	if err != nil {
		return nil, errors.Wrap(err, "selecting semester grades")
	}
	res := make([]grading.SemesterGrade, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toGrade())
	}
	return res, nil
}

func (repo *gradeRepository) UpdateSemesterGradeResult(ctx context.Context, g grading.SemesterGrade, exec ...core.DBExecutor) error {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`UPDATE semester_grade SET final = $4, decision = $5, failed_modules = $6
		WHERE student_id = $1 AND semester_id = $2 AND academic_year = $3`,
		g.StudentID, g.SemesterID, g.AcademicYear, nullFloat(g.Final), nullDecision(g.Decision), g.FailedModules)
	return mustAffect(res, err, "updating semester grade result")
}

// Year grades

func (repo *gradeRepository) GetYearGrade(ctx context.Context, key grading.YearGradeKey, exec ...core.DBExecutor) (grading.YearGrade, error) {
	var row yearGradeRow
	err := executor(repo.db, exec).GetContext(ctx, &row,
		`SELECT id, student_id, academic_year, final, decision FROM year_grade
		WHERE student_id = $1 AND academic_year = $2`,
		key.StudentID, key.AcademicYear)
	if err != nil {
		return grading.YearGrade{}, notFound(err, "getting year grade")
	}
	return row.toGrade(), nil
}

func (repo *gradeRepository) UpdateYearGradeResult(ctx context.Context, g grading.YearGrade, exec ...core.DBExecutor) error {
	res, err := executor(repo.db, exec).ExecContext(ctx,
		`UPDATE year_grade SET final = $3, decision = $4 WHERE student_id = $1 AND academic_year = $2`,
		g.StudentID, g.AcademicYear, nullFloat(g.Final), nullDecision(g.Decision))
	return mustAffect(res, err, "updating year grade result")
}
