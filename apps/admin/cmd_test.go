package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/deliberation/core/grading"
	"github.com/trezcool/deliberation/tests"
)

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runTests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_batches(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	store.Catalog.AddModules(testutil.NewModule(10, 1, 1, 1, testutil.NewElement(101, 1, 1, 1)))
	store.Enroll(1, 1, 1, 2)

	out := new(bytes.Buffer)
	cli := &commandLine{
		runner: grading.NewService(
			store.DB, store.Enrollments, store.Catalog, store.Grades, nil, new(testutil.Logger),
			grading.Options{Workers: 2},
		),
		out: out,
	}

	runTests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "initialize: no args", args: []string{"initialize"}, wantErr: errHelp},
		{name: "initialize: no year", args: []string{"initialize", "-semester", "1"}, wantErr: errHelp},
		{name: "initialize: bad flag", args: []string{"initialize", "-semestre", "1"}, wantErr: errHelp},
		{name: "initialize: invalid year", args: []string{"initialize", "-semester", "1", "-year", "2024-2026"}, wantErrStr: "invalid input"},
		{
			name:    "initialize",
			args:    []string{"initialize", "-semester", "1", "-year", testutil.Year},
			wantOut: "grade records initialized for 2 of 2 students in semester 1 of 2024-2025",
		},
		{
			name:    "initialize: empty semester",
			args:    []string{"initialize", "-semester", "2", "-year", testutil.Year},
			wantOut: "nothing to do",
		},
	})
	assert.Equal(t, grading.RowCounts{Elements: 2, Modules: 2, Semesters: 2, Years: 2}, store.Grades.Counts())

	f := testutil.Float
	store.SetScores(t, 1, 101, 1, f(12), f(12), f(12), nil)

	runTests(t, cli, out, []cliTest{
		{name: "finalize-semester: no args", args: []string{"finalize-semester"}, wantErr: errHelp},
		{
			name:    "finalize-semester",
			args:    []string{"finalize-semester", "-semester", "1", "-year", testutil.Year},
			wantOut: "(1 semesters finalized, 1 pending)",
		},
		{name: "finalize-year: no args", args: []string{"finalize-year"}, wantErr: errHelp},
		{
			name:    "finalize-year",
			args:    []string{"finalize-year", "-year", testutil.Year},
			wantOut: "year grades finalized for 2 of 2 students",
		},
	})

	g, err := store.Grades.GetYearGrade(ctx, grading.YearGradeKey{StudentID: 1, AcademicYear: testutil.Year})
	require.NoError(t, err)
	require.NotNil(t, g.Final)
	assert.Equal(t, 12.0, *g.Final)
}

type runnerStub struct {
	report grading.Report
	err    error
}

func (r runnerStub) InitializeEmptyGrades(context.Context, int, string) (grading.Report, error) {
	return r.report, r.err
}

func (r runnerStub) FinalizeSemesterGrades(context.Context, int, string) (grading.Report, error) {
	return r.report, r.err
}

func (r runnerStub) FinalizeYearGrades(context.Context, string) (grading.Report, error) {
	return r.report, r.err
}

func Test_commandLine_failures(t *testing.T) {
	failures := []grading.StudentFailure{{StudentID: 7, Error: "connection reset"}}
	bErr := &grading.BatchError{Operation: grading.OpFinalizeYear, Scope: "academic year " + testutil.Year, Total: 2, Failures: failures}
	out := new(bytes.Buffer)

	cli := &commandLine{
		runner: runnerStub{
			report: grading.Report{Operation: grading.OpFinalizeYear, AcademicYear: testutil.Year, Students: 2, Succeeded: 1, Failures: failures},
			err:    bErr,
		},
		out: out,
	}
	runTests(t, cli, out, []cliTest{
		{name: "partial failure", args: []string{"finalize-year", "-year", testutil.Year}, wantErr: bErr, wantOut: "student 7: connection reset"},
	})

	dbDown := errors.New("db down")
	cli.runner = runnerStub{err: dbDown}
	runTests(t, cli, out, []cliTest{
		{name: "persistence failure", args: []string{"finalize-year", "-year", testutil.Year}, wantErr: dbDown},
	})
	assert.Empty(t, out.String())
}

func Test_commandLine_migrate(t *testing.T) {
	out := new(bytes.Buffer)
	cli := &commandLine{
		migrate: func(command string, args ...string) error {
			switch command {
			case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
			case "up-to", "down-to":
				if len(args) == 0 {
					return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
				}
				if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
					return fmt.Errorf("version must be a number (got '%s')", args[0])
				}
			case "create":
				if len(args) == 0 {
					return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
				}
			default:
				return fmt.Errorf("%q: no such command", command)
			}
			return nil
		},
		out: out,
	}

	runTests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "transcripts", "sql"}},
	})
}
