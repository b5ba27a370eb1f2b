package grading

import (
	"fmt"

	"github.com/trezcool/deliberation/core"
)

// Scope identifies the records affected by a semester batch.
type Scope struct {
	SemesterID   int    `json:"semester_id" validate:"required,gt=0"`
	AcademicYear string `json:"academic_year" validate:"required,academicyear"`
}

// NewScope validates semesterID & academicYear. It fails with a *core.ValidationError.
func NewScope(semesterID int, academicYear string) (Scope, error) {
	s := Scope{SemesterID: semesterID, AcademicYear: core.CleanString(academicYear)}
	if err := core.ValidateStruct(s); err != nil {
		return Scope{}, err
	}
	return s, nil
}

func (s Scope) String() string {
	return fmt.Sprintf("semester %d of %s", s.SemesterID, s.AcademicYear)
}

// YearScope identifies the records affected by an academic year batch.
type YearScope struct {
	AcademicYear string `json:"academic_year" validate:"required,academicyear"`
}

func NewYearScope(academicYear string) (YearScope, error) {
	s := YearScope{AcademicYear: core.CleanString(academicYear)}
	if err := core.ValidateStruct(s); err != nil {
		return YearScope{}, err
	}
	return s, nil
}

func (s YearScope) String() string {
	return "academic year " + s.AcademicYear
}
