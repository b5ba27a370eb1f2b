package echoapi

import (
	"github.com/trezcool/deliberation/core/grading"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// response is the envelope of every grading endpoint.
type response struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message"`
	Report   *grading.Report          `json:"report,omitempty"`
	Failures []grading.StudentFailure `json:"failures,omitempty"`
	Errors   map[string]string        `json:"errors,omitempty"`
	Data     interface{}              `json:"data,omitempty"`
}

type semesterRequest struct {
	SemesterID   int    `json:"semester_id"`
	AcademicYear string `json:"academic_year"`
}

type yearRequest struct {
	AcademicYear string `json:"academic_year"`
}

type periodsRequest struct {
	NormalOpen *bool `json:"normal_open"`
	MakeupOpen *bool `json:"makeup_open"`
}
