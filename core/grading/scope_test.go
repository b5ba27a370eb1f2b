package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/deliberation/core"
)

func TestNewScope(t *testing.T) {
	tests := []struct {
		name       string
		semesterID int
		year       string
		wantField  string
	}{
		{name: "valid", semesterID: 2, year: " 2024-2025 "},
		{name: "second year must follow the first", semesterID: 1, year: "2024-2026", wantField: "academic_year"},
		{name: "same year", semesterID: 1, year: "2024-2024", wantField: "academic_year"},
		{name: "short year", semesterID: 1, year: "24-25", wantField: "academic_year"},
		{name: "missing year", semesterID: 1, wantField: "academic_year"},
		{name: "negative semester", semesterID: -1, year: "2024-2025", wantField: "semester_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScope(tt.semesterID, tt.year)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, Scope{SemesterID: 2, AcademicYear: "2024-2025"}, s)
				assert.Equal(t, "semester 2 of 2024-2025", s.String())
				return
			}
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}
}

func TestNewYearScope(t *testing.T) {
	s, err := NewYearScope("2024-2025")
	require.NoError(t, err)
	assert.Equal(t, "academic year 2024-2025", s.String())

	_, err = NewYearScope("2025-2024")
	assert.True(t, core.IsValidationError(err))
}

func TestReport_Message(t *testing.T) {
	r := Report{
		Operation:    OpFinalizeSemester,
		SemesterID:   1,
		AcademicYear: "2024-2025",
		Students:     3,
		Succeeded:    2,
		Finalized:    RowCounts{Semesters: 1},
		Pending:      RowCounts{Semesters: 1},
		Failures:     []StudentFailure{{StudentID: 3, Error: "boom"}},
	}
	assert.Equal(t,
		"semester grades finalized for 2 of 3 students in semester 1 of 2024-2025 (1 semesters finalized, 1 pending); 1 students failed",
		r.Message())

	bErr := &BatchError{Operation: r.Operation, Scope: r.scope(), Total: 3, Failures: r.Failures}
	assert.Equal(t, "finalize-semester (semester 1 of 2024-2025): 1 of 3 students failed: 3", bErr.Error())
}
