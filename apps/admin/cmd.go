package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/deliberation/core/grading"
	"github.com/trezcool/deliberation/services/scheduler"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	runner  scheduler.Runner
	migrate func(command string, args ...string) error
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  initialize -semester ID -year YYYY-YYYY - create the missing (empty) grade records of a semester")
	fmt.Fprintln(cli.out, "  finalize-semester -semester ID -year YYYY-YYYY - compute element, module & semester results")
	fmt.Fprintln(cli.out, "  finalize-year -year YYYY-YYYY - compute year results")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	semesterCmd := func(name string) (*flag.FlagSet, *int, *string) {
		cmd := flag.NewFlagSet(name, flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		return cmd, cmd.Int("semester", 0, "The semester id."), cmd.String("year", "", "The academic year (eg: 2024-2025).")
	}
	initializeCmd, initializeSemester, initializeYear := semesterCmd(string(grading.OpInitialize))
	finalizeSemesterCmd, finalizeSemester, finalizeSemesterYear := semesterCmd(string(grading.OpFinalizeSemester))

	finalizeYearCmd := flag.NewFlagSet(string(grading.OpFinalizeYear), flag.ContinueOnError)
	finalizeYearCmd.SetOutput(cli.out)
	finalizeYear := finalizeYearCmd.String("year", "", "The academic year (eg: 2024-2025).")

	ctx := context.Background()

	switch grading.Operation(args[1]) {
	case grading.OpInitialize:
		if err := initializeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *initializeSemester == 0 || *initializeYear == "" {
			initializeCmd.Usage()
			return errHelp
		}
		return cli.report(cli.runner.InitializeEmptyGrades(ctx, *initializeSemester, *initializeYear))
	case grading.OpFinalizeSemester:
		if err := finalizeSemesterCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *finalizeSemester == 0 || *finalizeSemesterYear == "" {
			finalizeSemesterCmd.Usage()
			return errHelp
		}
		return cli.report(cli.runner.FinalizeSemesterGrades(ctx, *finalizeSemester, *finalizeSemesterYear))
	case grading.OpFinalizeYear:
		if err := finalizeYearCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *finalizeYear == "" {
			finalizeYearCmd.Usage()
			return errHelp
		}
		return cli.report(cli.runner.FinalizeYearGrades(ctx, *finalizeYear))
	}

	if args[1] == "migrate" {
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2], args[3:]...)
	}

	cli.printUsage()
	return errHelp
}

// report prints the outcome of a batch run. A partial failure is still reported.
func (cli *commandLine) report(report grading.Report, err error) error {
	if _, partial := grading.IsBatchError(err); err != nil && !partial {
		return err
	}

	fmt.Fprintln(cli.out, report.Message())
	for _, f := range report.Failures {
		fmt.Fprintf(cli.out, "  student %d: %s\n", f.StudentID, f.Error)
	}
	return err
}
