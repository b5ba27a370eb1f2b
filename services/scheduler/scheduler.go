// Package scheduler runs grading batches on a cron schedule, typically at the close of an entry period.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

// jobTimeout bounds a single scheduled batch.
var jobTimeout = 30 * time.Minute

type (
	// Runner runs the grading batches.
	Runner interface {
		InitializeEmptyGrades(ctx context.Context, semesterID int, academicYear string) (grading.Report, error)
		FinalizeSemesterGrades(ctx context.Context, semesterID int, academicYear string) (grading.Report, error)
		FinalizeYearGrades(ctx context.Context, academicYear string) (grading.Report, error)
	}

	// Reporter receives the report of every scheduled run.
	Reporter interface {
		SendReport(report grading.Report)
	}

	// PeriodCloser closes score entry periods.
	PeriodCloser interface {
		Close(kind grading.EntryKind)
	}

	// Job is a scheduled batch, parsed from "<cron spec>|<operation>|<semester>|<academic year>[|<period>]".
	// The semester is ignored (and may be "-") for finalize-year.
	// When set, the entry period ClosePeriod is closed right before the batch runs.
	Job struct {
		Spec         string
		Operation    grading.Operation
		SemesterID   int
		AcademicYear string
		ClosePeriod  grading.EntryKind
	}

	Scheduler struct {
		cron     *cron.Cron
		runner   Runner
		reporter Reporter
		periods  PeriodCloser
		logger   core.Logger
	}
)

// ParseJob parses a job definition.
func ParseJob(def string) (Job, error) {
	parts := strings.Split(def, "|")
	if len(parts) != 4 && len(parts) != 5 {
		return Job{}, errors.Errorf("invalid job %q: expected <cron>|<operation>|<semester>|<academic year>[|<period>]", def)
	}
	for i := range parts {
		parts[i] = core.CleanString(parts[i])
	}

	job := Job{Spec: parts[0], Operation: grading.Operation(strings.ToLower(parts[1])), AcademicYear: parts[3]}
	if _, err := cron.ParseStandard(job.Spec); err != nil {
		return Job{}, errors.Wrapf(err, "invalid job %q", def)
	}
	switch job.Operation {
	case grading.OpInitialize, grading.OpFinalizeSemester:
		semesterID, err := strconv.Atoi(parts[2])
		if err != nil || semesterID <= 0 {
			return Job{}, errors.Errorf("invalid job %q: invalid semester %q", def, parts[2])
		}
		job.SemesterID = semesterID
	case grading.OpFinalizeYear:
	default:
		return Job{}, errors.Errorf("invalid job %q: unknown operation %q", def, parts[1])
	}
	if !core.IsAcademicYear(job.AcademicYear) {
		return Job{}, errors.Errorf("invalid job %q: invalid academic year %q", def, parts[3])
	}
	if len(parts) == 5 && parts[4] != "" {
		job.ClosePeriod = grading.EntryKind(strings.ToLower(parts[4]))
		if job.ClosePeriod != grading.EntryNormal && job.ClosePeriod != grading.EntryMakeup {
			return Job{}, errors.Errorf("invalid job %q: unknown entry period %q", def, parts[4])
		}
	}
	return job, nil
}

func (j Job) String() string {
	s := fmt.Sprintf("%s S%d %s [%s]", j.Operation, j.SemesterID, j.AcademicYear, j.Spec)
	if j.Operation == grading.OpFinalizeYear {
		s = fmt.Sprintf("%s %s [%s]", j.Operation, j.AcademicYear, j.Spec)
	}
	if j.ClosePeriod != "" {
		s += fmt.Sprintf(" closing %s entries", j.ClosePeriod)
	}
	return s
}

// New registers the configured jobs. Overlapping runs of the same job are skipped.
// periods may be nil when no job closes an entry period.
func New(conf core.SchedulerConfig, runner Runner, reporter Reporter, periods PeriodCloser, logger core.Logger) (*Scheduler, error) {
	cl := cronLogger{logger}
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		runner:   runner,
		reporter: reporter,
		periods:  periods,
		logger:   logger,
	}
	for _, def := range conf.Jobs {
		if core.CleanString(def) == "" {
			continue
		}
		job, err := ParseJob(def)
		if err != nil {
			return nil, err
		}
		if job.ClosePeriod != "" && periods == nil {
			return nil, errors.Errorf("scheduling %s: no entry periods to close", job)
		}
		if _, err = s.cron.AddFunc(job.Spec, func() { s.Run(context.Background(), job) }); err != nil {
			return nil, errors.Wrapf(err, "scheduling %s", job)
		}
		logger.Info("scheduled " + job.String())
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for the running jobs, or ctx, to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Run runs job right away and reports its outcome.
func (s *Scheduler) Run(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if job.ClosePeriod != "" && s.periods != nil {
		s.periods.Close(job.ClosePeriod)
		s.logger.Info(fmt.Sprintf("%s score entries closed", job.ClosePeriod))
	}

	var (
		report grading.Report
		err    error
	)
	switch job.Operation {
	case grading.OpInitialize:
		report, err = s.runner.InitializeEmptyGrades(ctx, job.SemesterID, job.AcademicYear)
	case grading.OpFinalizeSemester:
		report, err = s.runner.FinalizeSemesterGrades(ctx, job.SemesterID, job.AcademicYear)
	case grading.OpFinalizeYear:
		report, err = s.runner.FinalizeYearGrades(ctx, job.AcademicYear)
	}

	if _, partial := grading.IsBatchError(err); err != nil && !partial {
		s.logger.Error(fmt.Sprintf("scheduled %s failed: %v", job, err), err)
		return
	}
	if s.reporter != nil {
		s.reporter.SendReport(report)
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvExtras(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvExtras(keysAndValues))
}

func kvExtras(kv []interface{}) map[string]interface{} {
	extras := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		extras[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return extras
}
