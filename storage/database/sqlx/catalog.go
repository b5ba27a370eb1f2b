package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/deliberation/core/grading"
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ grading.EnrollmentLookup = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

const enrollmentColumns = `student_id, field_id, semester_id, academic_year, "group"`

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, scope grading.Scope) ([]grading.Enrollment, error) {
	res := make([]grading.Enrollment, 0)
	rows := make([]enrollmentRow, 0)
	q := `SELECT ` + enrollmentColumns + ` FROM enrollment WHERE semester_id = $1 AND academic_year = $2 ORDER BY student_id`
	if err := repo.db.SelectContext(ctx, &rows, q, scope.SemesterID, scope.AcademicYear); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	for _, r := range rows {
		res = append(res, r.toEnrollment())
	}
	return res, nil
}

func (repo *enrollmentRepository) QueryYearEnrollments(ctx context.Context, academicYear string) ([]grading.Enrollment, error) {
	res := make([]grading.Enrollment, 0)
	rows := make([]enrollmentRow, 0)
	q := `SELECT ` + enrollmentColumns + ` FROM enrollment WHERE academic_year = $1 ORDER BY student_id, semester_id`
	if err := repo.db.SelectContext(ctx, &rows, q, academicYear); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	for _, r := range rows {
		res = append(res, r.toEnrollment())
	}
	return res, nil
}

type enrollmentRow struct {
	StudentID    int64  `db:"student_id"`
	FieldID      int64  `db:"field_id"`
	SemesterID   int    `db:"semester_id"`
	AcademicYear string `db:"academic_year"`
	Group        string `db:"group"`
}

func (r enrollmentRow) toEnrollment() grading.Enrollment {
	return grading.Enrollment(r)
}

type catalogRepository struct {
	db *sqlx.DB
}

var _ grading.CatalogLookup = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

type moduleRow struct {
	ID           int64   `db:"id"`
	FieldID      int64   `db:"field_id"`
	SemesterID   int     `db:"semester_id"`
	AcademicYear string  `db:"academic_year"`
	Name         string  `db:"name"`
	Coefficient  float64 `db:"coefficient"`
}

type elementRow struct {
	ID               int64      `db:"id"`
	ModuleID         int64      `db:"module_id"`
	Name             string     `db:"name"`
	TPWeight         float64    `db:"tp_weight"`
	CCWeight         float64    `db:"cc_weight"`
	ExamWeight       float64    `db:"exam_weight"`
	Weight           float64    `db:"weight"`
	MainInstructorID null.Int64 `db:"main_instructor_id"`
	LabInstructorID  null.Int64 `db:"lab_instructor_id"`
}

func (repo *catalogRepository) QueryModules(ctx context.Context, fieldID int64, scope grading.Scope) ([]grading.Module, error) {
	modRows := make([]moduleRow, 0)
	q := `SELECT id, field_id, semester_id, academic_year, name, coefficient FROM module
		WHERE field_id = $1 AND semester_id = $2 AND academic_year = $3 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &modRows, q, fieldID, scope.SemesterID, scope.AcademicYear); err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}

	res := make([]grading.Module, 0, len(modRows))
	if len(modRows) == 0 {
		return res, nil
	}
	ids := make([]int64, 0, len(modRows))
	for _, r := range modRows {
		ids = append(ids, r.ID)
	}

	q, args, err := sqlx.In(`SELECT id, module_id, name, tp_weight, cc_weight, exam_weight, weight,
		main_instructor_id, lab_instructor_id FROM element WHERE module_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building element query")
	}
	elRows := make([]elementRow, 0)
	if err = repo.db.SelectContext(ctx, &elRows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting elements")
	}
	byModule := make(map[int64][]grading.Element, len(modRows))
	for _, r := range elRows {
		byModule[r.ModuleID] = append(byModule[r.ModuleID], grading.Element{
			ID:               r.ID,
			ModuleID:         r.ModuleID,
			Name:             r.Name,
			TPWeight:         r.TPWeight,
			CCWeight:         r.CCWeight,
			ExamWeight:       r.ExamWeight,
			Weight:           r.Weight,
			MainInstructorID: r.MainInstructorID.Ptr(),
			LabInstructorID:  r.LabInstructorID.Ptr(),
		})
	}

	for _, r := range modRows {
		res = append(res, grading.Module{
			ID:           r.ID,
			FieldID:      r.FieldID,
			SemesterID:   r.SemesterID,
			AcademicYear: r.AcademicYear,
			Name:         r.Name,
			Coefficient:  r.Coefficient,
			Elements:     byModule[r.ID],
		})
	}
	return res, nil
}
