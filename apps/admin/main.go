package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
	logsvc "github.com/trezcool/deliberation/services/logger"
	"github.com/trezcool/deliberation/services/period"
	"github.com/trezcool/deliberation/storage/database"
	sqlxrepos "github.com/trezcool/deliberation/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	gradingSvc := grading.NewService(
		database.NewTransactor(db),
		sqlxrepos.NewEnrollmentRepository(db),
		sqlxrepos.NewCatalogRepository(db),
		sqlxrepos.NewGradeRepository(db),
		period.NewGate(conf.Grading),
		logger,
		grading.NewOptions(conf.Grading),
	)

	// start CLI
	cli := commandLine{
		runner: gradingSvc,
		migrate: func(command string, args ...string) error {
			return database.Migrate(db, command, args...)
		},
		out: os.Stdout,
	}
	err = cli.run(os.Args)

	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
