package grading

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/deliberation/core"
)

type (
	EnrollmentLookup interface {
		// QueryEnrollments lists the enrollments of a semester.
		QueryEnrollments(ctx context.Context, scope Scope) ([]Enrollment, error)
		// QueryYearEnrollments lists the enrollments of all the semesters of an academic year.
		QueryYearEnrollments(ctx context.Context, academicYear string) ([]Enrollment, error)
	}

	CatalogLookup interface {
		// QueryModules lists the modules, along with their elements, defined for a field of study in a semester.
		QueryModules(ctx context.Context, fieldID int64, scope Scope) ([]Module, error)
	}

	// GradeStore persists grade records. Create*IfAbsent never touch an existing record.
	// Update*Result only write derived fields (final score & decisions).
	// Records are looked up by key; a missing record is reported as ErrNotFound.
	GradeStore interface {
		CreateElementGradeIfAbsent(ctx context.Context, key ElementGradeKey, exec ...core.DBExecutor) (bool, error)
		CreateModuleGradeIfAbsent(ctx context.Context, key ModuleGradeKey, exec ...core.DBExecutor) (bool, error)
		CreateSemesterGradeIfAbsent(ctx context.Context, key SemesterGradeKey, exec ...core.DBExecutor) (bool, error)
		CreateYearGradeIfAbsent(ctx context.Context, key YearGradeKey, exec ...core.DBExecutor) (bool, error)

		GetElementGrade(ctx context.Context, key ElementGradeKey, exec ...core.DBExecutor) (ElementGrade, error)
		// QueryElementGrades lists the element grades of a student in a semester.
		QueryElementGrades(ctx context.Context, key SemesterGradeKey, exec ...core.DBExecutor) ([]ElementGrade, error)
		// UpdateElementGradeScores only writes the raw component scores.
		UpdateElementGradeScores(ctx context.Context, g ElementGrade, exec ...core.DBExecutor) error
		UpdateElementGradeResult(ctx context.Context, g ElementGrade, exec ...core.DBExecutor) error

		// QueryModuleGrades lists the module grades of a student in a semester.
		QueryModuleGrades(ctx context.Context, key SemesterGradeKey, exec ...core.DBExecutor) ([]ModuleGrade, error)
		UpdateModuleGradeResult(ctx context.Context, g ModuleGrade, exec ...core.DBExecutor) error

		GetSemesterGrade(ctx context.Context, key SemesterGradeKey, exec ...core.DBExecutor) (SemesterGrade, error)
		// QuerySemesterGrades lists the semester grades of a student in an academic year.
		QuerySemesterGrades(ctx context.Context, key YearGradeKey, exec ...core.DBExecutor) ([]SemesterGrade, error)
		UpdateSemesterGradeResult(ctx context.Context, g SemesterGrade, exec ...core.DBExecutor) error

		GetYearGrade(ctx context.Context, key YearGradeKey, exec ...core.DBExecutor) (YearGrade, error)
		UpdateYearGradeResult(ctx context.Context, g YearGrade, exec ...core.DBExecutor) error
	}

	Options struct {
		Workers         int
		PartialAverages bool
	}

	Service struct {
		tx          core.Transactor
		enrollments EnrollmentLookup
		catalog     CatalogLookup
		grades      GradeStore
		gate        PeriodGate
		logger      core.Logger
		opts        Options
	}
)

func NewOptions(conf core.GradingConfig) Options {
	return Options{Workers: conf.Workers, PartialAverages: conf.PartialAverages}
}

func NewService(
	tx core.Transactor,
	enrollments EnrollmentLookup,
	catalog CatalogLookup,
	grades GradeStore,
	gate PeriodGate,
	logger core.Logger,
	opts Options,
) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		tx:          tx,
		enrollments: enrollments,
		catalog:     catalog,
		grades:      grades,
		gate:        gate,
		logger:      logger,
		opts:        opts,
	}
}

// InitializeEmptyGrades makes sure every student enrolled in the semester has a (pending) grade record
// for each element & module of their curriculum, for the semester and for the academic year.
// Existing records are left untouched.
func (svc *Service) InitializeEmptyGrades(ctx context.Context, semesterID int, academicYear string) (Report, error) {
	scope, err := NewScope(semesterID, academicYear)
	if err != nil {
		return Report{}, err
	}
	report := Report{Operation: OpInitialize, SemesterID: scope.SemesterID, AcademicYear: scope.AcademicYear}

	enrollments, err := svc.enrollments.QueryEnrollments(ctx, scope)
	if err != nil {
		return report, svc.persistenceError("querying enrollments", scope, err)
	}
	enrollments = uniqueStudents(enrollments)
	report.Students = len(enrollments)
	if len(enrollments) == 0 {
		svc.logger.Info(report.Message())
		return report, nil
	}

	curricula := svc.loadCurricula(ctx, scope, enrollments)
	svc.runBatch(ctx, &report, enrollments, func(ctx context.Context, enr Enrollment) (studentResult, error) {
		cur, err := curricula.get(enr.FieldID)
		if err != nil {
			return studentResult{}, err
		}
		return svc.initializeStudent(ctx, scope, enr, cur)
	})
	return report, svc.finish(report)
}

// FinalizeSemesterGrades computes the element, module & semester results of every student enrolled in the semester.
func (svc *Service) FinalizeSemesterGrades(ctx context.Context, semesterID int, academicYear string) (Report, error) {
	scope, err := NewScope(semesterID, academicYear)
	if err != nil {
		return Report{}, err
	}
	report := Report{Operation: OpFinalizeSemester, SemesterID: scope.SemesterID, AcademicYear: scope.AcademicYear}

	enrollments, err := svc.enrollments.QueryEnrollments(ctx, scope)
	if err != nil {
		return report, svc.persistenceError("querying enrollments", scope, err)
	}
	enrollments = uniqueStudents(enrollments)
	report.Students = len(enrollments)
	if len(enrollments) == 0 {
		svc.logger.Info(report.Message())
		return report, nil
	}

	curricula := svc.loadCurricula(ctx, scope, enrollments)
	svc.runBatch(ctx, &report, enrollments, func(ctx context.Context, enr Enrollment) (studentResult, error) {
		cur, err := curricula.get(enr.FieldID)
		if err != nil {
			return studentResult{}, err
		}
		return svc.finalizeStudentSemester(ctx, scope, enr, cur)
	})
	return report, svc.finish(report)
}

// FinalizeYearGrades computes the academic year result of every student enrolled in the year.
// It is not chained to FinalizeSemesterGrades: it must be run once all the semesters of the year are finalized.
func (svc *Service) FinalizeYearGrades(ctx context.Context, academicYear string) (Report, error) {
	scope, err := NewYearScope(academicYear)
	if err != nil {
		return Report{}, err
	}
	report := Report{Operation: OpFinalizeYear, AcademicYear: scope.AcademicYear}

	enrollments, err := svc.enrollments.QueryYearEnrollments(ctx, scope.AcademicYear)
	if err != nil {
		return report, svc.persistenceError("querying enrollments", scope, err)
	}
	enrollments = uniqueStudents(enrollments)
	report.Students = len(enrollments)
	if len(enrollments) == 0 {
		svc.logger.Info(report.Message())
		return report, nil
	}

	svc.runBatch(ctx, &report, enrollments, func(ctx context.Context, enr Enrollment) (studentResult, error) {
		return svc.finalizeStudentYear(ctx, scope, enr)
	})
	return report, svc.finish(report)
}

func (svc *Service) initializeStudent(ctx context.Context, scope Scope, enr Enrollment, cur curriculum) (studentResult, error) {
	var res studentResult
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		res = studentResult{}
		for _, mod := range cur.modules {
			for _, el := range mod.Elements {
				created, err := svc.grades.CreateElementGradeIfAbsent(ctx, ElementGradeKey{
					StudentID:    enr.StudentID,
					ElementID:    el.ID,
					SemesterID:   scope.SemesterID,
					AcademicYear: scope.AcademicYear,
				}, exec)
				if err != nil {
					return errors.Wrapf(err, "creating grade of element %d", el.ID)
				}
				if created {
					res.created.Elements++
				}
			}

			created, err := svc.grades.CreateModuleGradeIfAbsent(ctx, ModuleGradeKey{
				StudentID:    enr.StudentID,
				ModuleID:     mod.ID,
				SemesterID:   scope.SemesterID,
				AcademicYear: scope.AcademicYear,
			}, exec)
			if err != nil {
				return errors.Wrapf(err, "creating grade of module %d", mod.ID)
			}
			if created {
				res.created.Modules++
			}
		}

		created, err := svc.grades.CreateSemesterGradeIfAbsent(ctx, semesterKey(enr.StudentID, scope), exec)
		if err != nil {
			return errors.Wrap(err, "creating semester grade")
		}
		if created {
			res.created.Semesters++
		}

		created, err = svc.grades.CreateYearGradeIfAbsent(ctx, YearGradeKey{
			StudentID:    enr.StudentID,
			AcademicYear: scope.AcademicYear,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating year grade")
		}
		if created {
			res.created.Years++
		}
		return nil
	})
	if err != nil {
		return studentResult{}, newPersistenceError("initializing grades", scope, err)
	}
	return res, nil
}

func (svc *Service) finalizeStudentSemester(ctx context.Context, scope Scope, enr Enrollment, cur curriculum) (studentResult, error) {
	key := semesterKey(enr.StudentID, scope)
	var res studentResult
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		res = studentResult{}

		// elements
		elGrades, err := svc.grades.QueryElementGrades(ctx, key, exec)
		if err != nil {
			return errors.Wrap(err, "querying element grades")
		}
		byModule := make(map[int64][]ElementGrade, len(cur.modules))
		for _, g := range elGrades {
			el, ok := cur.elements[g.ElementID]
			if !ok { // no longer part of the curriculum
				continue
			}
			fg := FinalizeElement(g, el)
			if !sameElementResult(g, fg) {
				if err = svc.grades.UpdateElementGradeResult(ctx, fg, exec); err != nil {
					return errors.Wrapf(err, "updating grade of element %d", el.ID)
				}
			}
			res.count(fg.Final, func(c *RowCounts) { c.Elements++ })
			byModule[el.ModuleID] = append(byModule[el.ModuleID], fg)
		}

		// modules
		modGrades, err := svc.grades.QueryModuleGrades(ctx, key, exec)
		if err != nil {
			return errors.Wrap(err, "querying module grades")
		}
		byID := make(map[int64]ModuleGrade, len(modGrades))
		for _, g := range modGrades {
			byID[g.ModuleID] = g
		}
		results := make([]ModuleResult, 0, len(cur.modules))
		for _, mod := range cur.modules {
			g, ok := byID[mod.ID]
			if !ok { // added to the curriculum after initialization: pending until re-initialized
				results = append(results, ModuleResult{Grade: ModuleGrade{ModuleID: mod.ID}, Coefficient: mod.Coefficient})
				continue
			}
			final, decision := AggregateModule(mod, byModule[mod.ID], svc.opts.PartialAverages)
			if !floatPtrEqual(g.Final, final) || !decisionPtrEqual(g.Decision, decision) {
				g.Final, g.Decision = final, decision
				if err = svc.grades.UpdateModuleGradeResult(ctx, g, exec); err != nil {
					return errors.Wrapf(err, "updating grade of module %d", mod.ID)
				}
			}
			res.count(g.Final, func(c *RowCounts) { c.Modules++ })
			results = append(results, ModuleResult{Grade: g, Coefficient: mod.Coefficient})
		}

		// semester
		sg, err := svc.grades.GetSemesterGrade(ctx, key, exec)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return errors.New("semester grade record missing: grades must be initialized first")
			}
			return errors.Wrap(err, "getting semester grade")
		}
		final, decision, failed := AggregateSemester(results, svc.opts.PartialAverages)
		if !floatPtrEqual(sg.Final, final) || !decisionPtrEqual(sg.Decision, decision) || sg.FailedModules != failed {
			sg.Final, sg.Decision, sg.FailedModules = final, decision, failed
			if err = svc.grades.UpdateSemesterGradeResult(ctx, sg, exec); err != nil {
				return errors.Wrap(err, "updating semester grade")
			}
		}
		res.count(sg.Final, func(c *RowCounts) { c.Semesters++ })
		return nil
	})
	if err != nil {
		return studentResult{}, newPersistenceError("finalizing semester grades", scope, err)
	}
	return res, nil
}

func (svc *Service) finalizeStudentYear(ctx context.Context, scope YearScope, enr Enrollment) (studentResult, error) {
	key := YearGradeKey{StudentID: enr.StudentID, AcademicYear: scope.AcademicYear}
	var res studentResult
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		res = studentResult{}

		semGrades, err := svc.grades.QuerySemesterGrades(ctx, key, exec)
		if err != nil {
			return errors.Wrap(err, "querying semester grades")
		}
		if len(semGrades) == 0 {
			res.pending.Years++
			return nil
		}

		yg, err := svc.grades.GetYearGrade(ctx, key, exec)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return errors.New("year grade record missing: grades must be initialized first")
			}
			return errors.Wrap(err, "getting year grade")
		}
		final, decision, _ := AggregateYear(semGrades, svc.opts.PartialAverages)
		if !floatPtrEqual(yg.Final, final) || !decisionPtrEqual(yg.Decision, decision) {
			yg.Final, yg.Decision = final, decision
			if err = svc.grades.UpdateYearGradeResult(ctx, yg, exec); err != nil {
				return errors.Wrap(err, "updating year grade")
			}
		}
		res.count(yg.Final, func(c *RowCounts) { c.Years++ })
		return nil
	})
	if err != nil {
		return studentResult{}, newPersistenceError("finalizing year grades", scope, err)
	}
	return res, nil
}

// Batch running

type studentResult struct {
	created   RowCounts
	finalized RowCounts
	pending   RowCounts
}

// count adds a record to the finalized or pending counts depending on its final score.
func (res *studentResult) count(final *float64, inc func(c *RowCounts)) {
	if final != nil {
		inc(&res.finalized)
	} else {
		inc(&res.pending)
	}
}

type studentFunc func(ctx context.Context, enr Enrollment) (studentResult, error)

// runBatch runs fn for every enrollment, on at most Options.Workers students at a time.
// A student failure is recorded in the report and does not stop the batch.
func (svc *Service) runBatch(ctx context.Context, report *Report, enrollments []Enrollment, fn studentFunc) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(svc.opts.Workers)

	for _, enr := range enrollments {
		enr := enr
		g.Go(func() error {
			var (
				res studentResult
				err = ctx.Err()
			)
			if err == nil {
				res, err = safeCall(ctx, enr, fn)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, StudentFailure{StudentID: enr.StudentID, Error: err.Error()})
				svc.logger.Error(
					fmt.Sprintf("%s: student %d failed", report.Operation, enr.StudentID),
					err,
					map[string]interface{}{
						"operation":     report.Operation,
						"student_id":    enr.StudentID,
						"semester_id":   report.SemesterID,
						"academic_year": report.AcademicYear,
					},
				)
				return nil
			}
			report.Succeeded++
			report.Created.add(res.created)
			report.Finalized.add(res.finalized)
			report.Pending.add(res.pending)
			return nil
		})
	}
	_ = g.Wait() // errors are collected in report.Failures

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].StudentID < report.Failures[j].StudentID })
}

// safeCall runs fn, turning a panic into an error so that it only fails the current student.
func safeCall(ctx context.Context, enr Enrollment, fn studentFunc) (res studentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, enr)
}

func (svc *Service) finish(report Report) error {
	if report.Success() {
		svc.logger.Info(report.Message())
		return nil
	}
	svc.logger.Warn(report.Message(), map[string]interface{}{"failures": report.Failures})
	return &BatchError{
		Operation: report.Operation,
		Scope:     report.scope(),
		Total:     report.Students,
		Failures:  report.Failures,
	}
}

func (svc *Service) persistenceError(op string, scope fmt.Stringer, err error) error {
	pErr := newPersistenceError(op, scope, err)
	svc.logger.Error(pErr.Error(), errors.WithStack(err), map[string]interface{}{"scope": scope.String()})
	return pErr
}

// curriculum is the catalog of a field of study for a semester.
type curriculum struct {
	modules     []Module
	modulesByID map[int64]Module
	elements    map[int64]Element
}

func newCurriculum(modules []Module) curriculum {
	cur := curriculum{
		modules:     modules,
		modulesByID: make(map[int64]Module, len(modules)),
		elements:    make(map[int64]Element),
	}
	for _, mod := range modules {
		cur.modulesByID[mod.ID] = mod
		for _, el := range mod.Elements {
			el.ModuleID = mod.ID
			cur.elements[el.ID] = el
		}
	}
	return cur
}

type curricula struct {
	byField map[int64]curriculum
	errs    map[int64]error
}

func (c curricula) get(fieldID int64) (curriculum, error) {
	if err, ok := c.errs[fieldID]; ok {
		return curriculum{}, err
	}
	return c.byField[fieldID], nil
}

// loadCurricula queries the catalog once per field of study of the enrolled students.
func (svc *Service) loadCurricula(ctx context.Context, scope Scope, enrollments []Enrollment) curricula {
	c := curricula{byField: make(map[int64]curriculum), errs: make(map[int64]error)}
	for _, enr := range enrollments {
		if _, ok := c.byField[enr.FieldID]; ok {
			continue
		}
		if _, ok := c.errs[enr.FieldID]; ok {
			continue
		}
		modules, err := svc.catalog.QueryModules(ctx, enr.FieldID, scope)
		if err != nil {
			c.errs[enr.FieldID] = svc.persistenceError(fmt.Sprintf("querying modules of field %d", enr.FieldID), scope, err)
			continue
		}
		c.byField[enr.FieldID] = newCurriculum(modules)
	}
	return c
}

// uniqueStudents keeps the first enrollment of each student, ordered by student ID.
func uniqueStudents(enrollments []Enrollment) []Enrollment {
	seen := make(map[int64]struct{}, len(enrollments))
	res := make([]Enrollment, 0, len(enrollments))
	for _, enr := range enrollments {
		if _, ok := seen[enr.StudentID]; ok {
			continue
		}
		seen[enr.StudentID] = struct{}{}
		res = append(res, enr)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StudentID < res[j].StudentID })
	return res
}

func semesterKey(studentID int64, scope Scope) SemesterGradeKey {
	return SemesterGradeKey{StudentID: studentID, SemesterID: scope.SemesterID, AcademicYear: scope.AcademicYear}
}

func sameElementResult(a, b ElementGrade) bool {
	return floatPtrEqual(a.Final, b.Final) &&
		decisionPtrEqual(a.Decision, b.Decision) &&
		decisionPtrEqual(a.MakeupDecision, b.MakeupDecision)
}
