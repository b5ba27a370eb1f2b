package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/deliberation/apps/api/echo"
	"github.com/trezcool/deliberation/core/grading"
	"github.com/trezcool/deliberation/services/period"
	"github.com/trezcool/deliberation/tests"
)

const year = testutil.Year

type semesterBody struct {
	SemesterID   int    `json:"semester_id"`
	AcademicYear string `json:"academic_year"`
}

type yearBody struct {
	AcademicYear string `json:"academic_year"`
}

func Test_gradingApi_auth(t *testing.T) {
	a := newApp(t)
	body := semesterBody{SemesterID: 1, AcademicYear: year}
	teacher := getToken(t, "teacher", RoleTeacher)
	student := getToken(t, "student")

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/grades/initialize", body: body, wantCode: http.StatusUnauthorized, wantMessage: "missing or malformed jwt"},
		{name: "teachers cannot run batches", method: http.MethodPost, path: "/v1/grades/initialize", body: body, token: teacher, wantCode: http.StatusForbidden, wantMessage: "permission denied"},
		{name: "teachers cannot finalize", method: http.MethodPost, path: "/v1/grades/year/finalize", body: yearBody{year}, token: teacher, wantCode: http.StatusForbidden},
		{name: "teachers cannot open periods", method: http.MethodPut, path: "/v1/grades/periods", body: map[string]bool{"makeup_open": true}, token: teacher, wantCode: http.StatusForbidden},
		{name: "students cannot enter scores", method: http.MethodPut, path: "/v1/grades/scores", body: map[string]string{}, token: student, wantCode: http.StatusForbidden},
		{name: "bad token", method: http.MethodGet, path: "/v1/grades/periods", token: "nope", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.do(t, tt)
		})
	}
	assert.Empty(t, a.mailer.sent())
}

func Test_gradingApi_batches(t *testing.T) {
	a := newApp(t)
	admin := getToken(t, "registrar", RoleGrading)
	teacher := getToken(t, "teacher", RoleTeacher)

	t.Run("invalid academic year", func(t *testing.T) {
		a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/initialize", token: admin,
			body:     semesterBody{SemesterID: 1, AcademicYear: "2024-2026"},
			wantCode: http.StatusBadRequest, wantMessage: "invalid input", wantErrors: []string{"academic_year"},
		})
	})

	t.Run("invalid semester", func(t *testing.T) {
		a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/semester/finalize", token: admin,
			body:     semesterBody{AcademicYear: year},
			wantCode: http.StatusBadRequest, wantErrors: []string{"semester_id"},
		})
	})

	t.Run("initialize", func(t *testing.T) {
		resp := a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/initialize", token: admin,
			body: semesterBody{SemesterID: 1, AcademicYear: year}, wantCode: http.StatusOK,
		})
		assert.Equal(t, "success", resp.Status)
		require.NotNil(t, resp.Report)
		assert.Equal(t, 2, resp.Report.Students)
		assert.Equal(t, 2, resp.Report.Succeeded)
		assert.Equal(t, grading.RowCounts{Elements: 4, Modules: 2, Semesters: 2, Years: 2}, resp.Report.Created)
		assert.Empty(t, resp.Failures)
		require.Len(t, a.mailer.sent(), 1)
	})

	t.Run("nothing to do", func(t *testing.T) {
		resp := a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/initialize", token: admin,
			body: semesterBody{SemesterID: 2, AcademicYear: year}, wantCode: http.StatusOK,
		})
		assert.Equal(t, "no students enrolled in semester 2 of 2024-2025: nothing to do", resp.Message)
		assert.Len(t, a.mailer.sent(), 1, "empty runs are not mailed")
	})

	for _, se := range []map[string]interface{}{
		{"kind": "normal", "student_id": 1, "element_id": 101, "semester_id": 1, "academic_year": year, "tp": 12, "cc": 14, "exam": 10},
		{"kind": "normal", "student_id": 1, "element_id": 102, "semester_id": 1, "academic_year": year, "tp": 10, "cc": 10, "exam": 10},
	} {
		a.do(t, httpTest{method: http.MethodPut, path: "/v1/grades/scores", token: teacher, body: se, wantCode: http.StatusOK})
	}

	t.Run("finalize semester", func(t *testing.T) {
		resp := a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/semester/finalize", token: admin,
			body: semesterBody{SemesterID: 1, AcademicYear: year}, wantCode: http.StatusOK,
		})
		require.NotNil(t, resp.Report)
		assert.Equal(t, 1, resp.Report.Finalized.Semesters)
		assert.Equal(t, 1, resp.Report.Pending.Semesters)

		g, err := a.store.Grades.GetSemesterGrade(context.Background(), grading.SemesterGradeKey{StudentID: 1, SemesterID: 1, AcademicYear: year})
		require.NoError(t, err)
		require.NotNil(t, g.Final)
		assert.Equal(t, 11.0, *g.Final)
		assert.Equal(t, grading.DecisionValidated.Ptr(), g.Decision)
	})

	t.Run("finalize year", func(t *testing.T) {
		resp := a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/year/finalize", token: admin,
			body: yearBody{year}, wantCode: http.StatusOK,
		})
		require.NotNil(t, resp.Report)
		assert.Equal(t, grading.OpFinalizeYear, resp.Report.Operation)
		assert.Equal(t, 2, resp.Report.Students)
		assert.Len(t, a.mailer.sent(), 3)
	})
}

type gradingSvcStub struct {
	GradingService
	report grading.Report
	err    error
}

func (s gradingSvcStub) InitializeEmptyGrades(context.Context, int, string) (grading.Report, error) {
	return s.report, s.err
}

func Test_gradingApi_failures(t *testing.T) {
	admin := getToken(t, "admin", RoleAdmin)
	body := semesterBody{SemesterID: 1, AcademicYear: year}
	failures := []grading.StudentFailure{{StudentID: 2, Error: "connection reset"}}

	t.Run("partial failure", func(t *testing.T) {
		report := grading.Report{Operation: grading.OpInitialize, SemesterID: 1, AcademicYear: year, Students: 3, Succeeded: 2, Failures: failures}
		a := newApp(t, gradingSvcStub{
			report: report,
			err:    &grading.BatchError{Operation: grading.OpInitialize, Scope: "semester 1 of " + year, Total: 3, Failures: failures},
		})
		resp := a.do(t, httpTest{method: http.MethodPost, path: "/v1/grades/initialize", token: admin, body: body, wantCode: http.StatusMultiStatus})
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, failures, resp.Failures)
		require.NotNil(t, resp.Report)
		assert.Equal(t, 2, resp.Report.Succeeded)
		require.Len(t, a.mailer.sent(), 1)
		assert.False(t, a.mailer.sent()[0].Success())
	})

	t.Run("persistence failure", func(t *testing.T) {
		a := newApp(t, gradingSvcStub{
			err: errors.Wrap(&grading.PersistenceError{Op: "querying enrollments", Scope: "semester 1 of " + year, Err: errors.New("db down")}, "initializing"),
		})
		resp := a.do(t, httpTest{method: http.MethodPost, path: "/v1/grades/initialize", token: admin, body: body, wantCode: http.StatusInternalServerError})
		assert.Equal(t, "querying enrollments (semester 1 of 2024-2025) failed", resp.Message)
		assert.Equal(t, 1, a.logger.Count("ERROR"))
		assert.Empty(t, a.mailer.sent())
	})
}

func Test_gradingApi_enterScores(t *testing.T) {
	a := newApp(t)
	admin := getToken(t, "registrar", RoleGrading)
	teacher := getToken(t, "teacher", RoleTeacher)

	a.do(t, httpTest{
		method: http.MethodPost, path: "/v1/grades/initialize", token: admin,
		body: semesterBody{SemesterID: 1, AcademicYear: year}, wantCode: http.StatusOK,
	})

	entry := func(kind string, studentID int64, scores map[string]float64) map[string]interface{} {
		m := map[string]interface{}{"kind": kind, "student_id": studentID, "element_id": 101, "semester_id": 1, "academic_year": year}
		for k, v := range scores {
			m[k] = v
		}
		return m
	}

	tests := []httpTest{
		{name: "out of range", body: entry("normal", 1, map[string]float64{"tp": 21}), wantCode: http.StatusBadRequest, wantErrors: []string{"tp"}},
		{name: "unknown grade", body: entry("normal", 9, map[string]float64{"tp": 12}), wantCode: http.StatusNotFound},
		{name: "makeup period closed", body: entry("makeup", 1, map[string]float64{"makeup": 12}), wantCode: http.StatusForbidden, wantMessage: grading.ErrPeriodClosed.Error()},
		{name: "saved", body: entry("normal", 1, map[string]float64{"tp": 12, "cc": 14}), wantCode: http.StatusOK, wantMessage: "scores saved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path, tt.token = http.MethodPut, "/v1/grades/scores", teacher
			a.do(t, tt)
		})
	}

	t.Run("makeup once the period is opened", func(t *testing.T) {
		a.gate.Set(period.State{MakeupOpen: true})
		resp := a.do(t, httpTest{
			method: http.MethodPut, path: "/v1/grades/scores", token: teacher,
			body: entry("makeup", 1, map[string]float64{"makeup": 15}), wantCode: http.StatusOK,
		})
		var g grading.ElementGrade
		require.NoError(t, json.Unmarshal(resp.Data, &g))
		assert.Equal(t, testutil.Float(12), g.TP)
		assert.Equal(t, testutil.Float(15), g.Makeup)
	})
}

func Test_gradingApi_periods(t *testing.T) {
	a := newApp(t)
	admin := getToken(t, "registrar", RoleGrading)

	state := func(resp httpResponse) period.State {
		var s period.State
		require.NoError(t, json.Unmarshal(resp.Data, &s))
		return s
	}

	resp := a.do(t, httpTest{path: "/v1/grades/periods", token: admin, wantCode: http.StatusOK})
	assert.Equal(t, period.State{NormalOpen: true}, state(resp))

	a.do(t, httpTest{
		method: http.MethodPut, path: "/v1/grades/periods", token: admin, body: map[string]string{},
		wantCode: http.StatusBadRequest, wantErrors: []string{"normal_open"},
	})

	resp = a.do(t, httpTest{
		method: http.MethodPut, path: "/v1/grades/periods", token: admin, body: map[string]bool{"makeup_open": true},
		wantCode: http.StatusOK,
	})
	assert.Equal(t, period.State{NormalOpen: true, MakeupOpen: true}, state(resp))
	assert.True(t, a.gate.IsOpen(grading.EntryMakeup))

	a.do(t, httpTest{
		method: http.MethodPut, path: "/v1/grades/periods", token: admin, body: map[string]bool{"normal_open": false},
		wantCode: http.StatusOK,
	})
	assert.False(t, a.gate.IsOpen(grading.EntryNormal))
	assert.True(t, a.gate.IsOpen(grading.EntryMakeup))
}
