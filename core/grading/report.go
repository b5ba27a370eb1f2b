package grading

import (
	"fmt"
	"strings"
)

// Operation names a batch entry point.
type Operation string

const (
	OpInitialize       Operation = "initialize"
	OpFinalizeSemester Operation = "finalize-semester"
	OpFinalizeYear     Operation = "finalize-year"
)

// RowCounts counts grade records per level.
type RowCounts struct {
	Elements  int `json:"elements"`
	Modules   int `json:"modules"`
	Semesters int `json:"semesters"`
	Years     int `json:"years"`
}

func (c *RowCounts) add(o RowCounts) {
	c.Elements += o.Elements
	c.Modules += o.Modules
	c.Semesters += o.Semesters
	c.Years += o.Years
}

func (c RowCounts) Total() int {
	return c.Elements + c.Modules + c.Semesters + c.Years
}

// Report summarizes a batch run.
type Report struct {
	Operation    Operation        `json:"operation"`
	SemesterID   int              `json:"semester_id,omitempty"`
	AcademicYear string           `json:"academic_year"`
	Students     int              `json:"students"`
	Succeeded    int              `json:"succeeded"`
	Created      RowCounts        `json:"created"`   // initialize only
	Finalized    RowCounts        `json:"finalized"` // records carrying a final score after the run
	Pending      RowCounts        `json:"pending"`   // records still waiting on inputs after the run
	Failures     []StudentFailure `json:"failures,omitempty"`
}

func (r Report) Success() bool { return len(r.Failures) == 0 }

func (r Report) scope() string {
	if r.SemesterID > 0 {
		return Scope{SemesterID: r.SemesterID, AcademicYear: r.AcademicYear}.String()
	}
	return YearScope{AcademicYear: r.AcademicYear}.String()
}

// Message is the human-readable summary of the run.
func (r Report) Message() string {
	if r.Students == 0 {
		return fmt.Sprintf("no students enrolled in %s: nothing to do", r.scope())
	}

	var b strings.Builder
	switch r.Operation {
	case OpInitialize:
		fmt.Fprintf(&b, "grade records initialized for %d of %d students in %s (%d created: %d elements, %d modules, %d semesters, %d years)",
			r.Succeeded, r.Students, r.scope(), r.Created.Total(),
			r.Created.Elements, r.Created.Modules, r.Created.Semesters, r.Created.Years)
	case OpFinalizeSemester:
		fmt.Fprintf(&b, "semester grades finalized for %d of %d students in %s (%d semesters finalized, %d pending)",
			r.Succeeded, r.Students, r.scope(), r.Finalized.Semesters, r.Pending.Semesters)
	case OpFinalizeYear:
		fmt.Fprintf(&b, "year grades finalized for %d of %d students in %s (%d finalized, %d pending)",
			r.Succeeded, r.Students, r.scope(), r.Finalized.Years, r.Pending.Years)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "; %d students failed", len(r.Failures))
	}
	return b.String()
}
