package main

import (
	"log"
	"os"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
	logsvc "github.com/trezcool/autograder/services/logger"
	"github.com/trezcool/autograder/storage/database"
	sqlxrepos "github.com/trezcool/autograder/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	cli := commandLine{conf: conf, out: os.Stdout}

	if needsDB(os.Args) {
		// set up DB
		db, err := database.Open(conf)
		errAndDie(err)
		defer func() { _ = db.Close() }()

		svcLogger := logsvc.NewRollbarLogger(logger, conf)
		svcLogger.Enable(false)
		svc, err := quiz.NewService(sqlxrepos.NewQuizRepository(db), conf, svcLogger)
		errAndDie(err)

		cli.db = db.DB
		cli.svc = svc
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
