package main

import (
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
	emailsvc "github.com/trezcool/contractgrading/services/email"
	logsvc "github.com/trezcool/contractgrading/services/logger"
	"github.com/trezcool/contractgrading/storage/database"
	sqlxrepos "github.com/trezcool/contractgrading/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("admin", conf), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	gradeimport.InitValidators(validate, translator)

	// start CLI
	cli := newCommandLine(
		db.DB,
		gradeimport.NewService(sqlxrepos.NewGradeImportRepository(db), emailsvc.NewService(logger, conf), logger, conf),
		validate,
	)
	err = cli.run(os.Args)
	if cErr := db.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		os.Exit(1)
	}
}
