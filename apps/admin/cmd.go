package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/contractgrading/core/gradeimport"
)

var (
	// mockable
	isTerminalFunc = term.IsTerminal
	readLineFunc   = func() (string, error) {
		return bufio.NewReader(os.Stdin).ReadString('\n')
	}

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	importSvc gradeimport.Service
	validate  *validator.Validate
	out       io.Writer
}

func newCommandLine(db *sql.DB, importSvc gradeimport.Service, validate *validator.Validate) *commandLine {
	return &commandLine{db: db, importSvc: importSvc, validate: validate, out: os.Stdout}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                    - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  import -class ID -file PATH [-mappings FILE] [-yes] - import a Canvas gradebook export")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importClass := importCmd.String("class", "", "The class to import grades into.")
	importFile := importCmd.String("file", "", "The .csv or .xlsx gradebook export.")
	importMappings := importCmd.String("mappings", "", "A JSON file of column mappings. Suggested from the column names when omitted.")
	importYes := importCmd.Bool("yes", false, "Commit without asking for confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return errHelp
			}
			return err
		}
		if strings.TrimSpace(*importClass) == "" || strings.TrimSpace(*importFile) == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importGradebook(importOptions{
			classID:      *importClass,
			file:         *importFile,
			mappingsFile: *importMappings,
			yes:          *importYes,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
