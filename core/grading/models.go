package grading

import (
	"github.com/google/uuid"
)

// Decision is the categorical outcome attached to a grade record.
type Decision string

// Element & Module decisions
const (
	DecisionPass Decision = "pass"
	DecisionFail Decision = "fail"

	// makeup session (element only)
	DecisionPassAfterMakeup Decision = "pass_after_makeup"
	DecisionStillFailed     Decision = "still_failed"
)

// Semester & Year decisions, in evaluation order.
const (
	DecisionValidated           Decision = "validated"
	DecisionValidatedWithCredit Decision = "validated_with_credit"
	DecisionFailed              Decision = "failed"
	DecisionNotValidated        Decision = "not_validated"
)

func (d Decision) Ptr() *Decision { return &d }

func (d Decision) String() string { return string(d) }

// Enrollment places a student in a semester of an academic year.
type Enrollment struct {
	StudentID    int64  `json:"student_id"`
	FieldID      int64  `json:"field_id"` // field of study (filière)
	SemesterID   int    `json:"semester_id"`
	AcademicYear string `json:"academic_year"`
	Group        string `json:"group"`
}

// Element is the smallest graded teaching unit of a Module.
// TPWeight, CCWeight & ExamWeight weigh the raw components; Weight weighs the element inside its module.
type Element struct {
	ID               int64   `json:"id"`
	ModuleID         int64   `json:"module_id"`
	Name             string  `json:"name"`
	TPWeight         float64 `json:"tp_weight"`
	CCWeight         float64 `json:"cc_weight"`
	ExamWeight       float64 `json:"exam_weight"`
	Weight           float64 `json:"weight"`
	MainInstructorID *int64  `json:"main_instructor_id"`
	LabInstructorID  *int64  `json:"lab_instructor_id"`
}

type Module struct {
	ID           int64     `json:"id"`
	FieldID      int64     `json:"field_id"`
	SemesterID   int       `json:"semester_id"`
	AcademicYear string    `json:"academic_year"`
	Name         string    `json:"name"`
	Coefficient  float64   `json:"coefficient"`
	Elements     []Element `json:"elements"`
}

type (
	ElementGradeKey struct {
		StudentID    int64
		ElementID    int64
		SemesterID   int
		AcademicYear string
	}

	ModuleGradeKey struct {
		StudentID    int64
		ModuleID     int64
		SemesterID   int
		AcademicYear string
	}

	SemesterGradeKey struct {
		StudentID    int64
		SemesterID   int
		AcademicYear string
	}

	YearGradeKey struct {
		StudentID    int64
		AcademicYear string
	}
)

// ElementGrade holds the raw component scores of a student for an Element, and the derived result.
// nil means "not entered" (raw scores) or "not computed yet" (derived fields).
type ElementGrade struct {
	ID           uuid.UUID `json:"id"`
	StudentID    int64     `json:"student_id"`
	ElementID    int64     `json:"element_id"`
	SemesterID   int       `json:"semester_id"`
	AcademicYear string    `json:"academic_year"`

	TP     *float64 `json:"tp"`
	CC     *float64 `json:"cc"`
	Exam   *float64 `json:"exam"`
	Makeup *float64 `json:"makeup"`

	Final          *float64  `json:"final"`
	Decision       *Decision `json:"decision"`
	MakeupDecision *Decision `json:"makeup_decision"`
}

func (g ElementGrade) Key() ElementGradeKey {
	return ElementGradeKey{
		StudentID:    g.StudentID,
		ElementID:    g.ElementID,
		SemesterID:   g.SemesterID,
		AcademicYear: g.AcademicYear,
	}
}

type ModuleGrade struct {
	ID           uuid.UUID `json:"id"`
	StudentID    int64     `json:"student_id"`
	ModuleID     int64     `json:"module_id"`
	SemesterID   int       `json:"semester_id"`
	AcademicYear string    `json:"academic_year"`
	Final        *float64  `json:"final"`
	Decision     *Decision `json:"decision"`
}

func (g ModuleGrade) Key() ModuleGradeKey {
	return ModuleGradeKey{
		StudentID:    g.StudentID,
		ModuleID:     g.ModuleID,
		SemesterID:   g.SemesterID,
		AcademicYear: g.AcademicYear,
	}
}

type SemesterGrade struct {
	ID            uuid.UUID `json:"id"`
	StudentID     int64     `json:"student_id"`
	SemesterID    int       `json:"semester_id"`
	AcademicYear  string    `json:"academic_year"`
	Final         *float64  `json:"final"`
	Decision      *Decision `json:"decision"`
	FailedModules int       `json:"failed_modules"`
}

func (g SemesterGrade) Key() SemesterGradeKey {
	return SemesterGradeKey{StudentID: g.StudentID, SemesterID: g.SemesterID, AcademicYear: g.AcademicYear}
}

type YearGrade struct {
	ID           uuid.UUID `json:"id"`
	StudentID    int64     `json:"student_id"`
	AcademicYear string    `json:"academic_year"`
	Final        *float64  `json:"final"`
	Decision     *Decision `json:"decision"`
}

func (g YearGrade) Key() YearGradeKey {
	return YearGradeKey{StudentID: g.StudentID, AcademicYear: g.AcademicYear}
}
