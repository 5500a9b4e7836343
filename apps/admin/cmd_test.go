package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
	emailsvc "github.com/trezcool/contractgrading/services/email"
	"github.com/trezcool/contractgrading/storage/database/inmem"
	"github.com/trezcool/contractgrading/tests"
)

const gradebookCSV = "Student,SIS Login ID,Essay 1,Lab Report\n" +
	"\"Doe, Jane\",jdoe,88,Completed\n" +
	"\"Smith, John\",jsmith,,Missing\n"

type fixture struct {
	cli   *commandLine
	repo  testutil.Seeder
	class testutil.Class
	out   *bytes.Buffer
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig()
	logger, _ := testutil.NewLogger(conf)

	// set up DB & repos
	repo := inmemdb.NewGradeImportRepository(inmemdb.Open())
	class := testutil.SeedClass(t, repo)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	gradeimport.InitValidators(validate, translator)

	// start CLI
	out := new(bytes.Buffer)
	cli := newCommandLine(nil, gradeimport.NewService(repo, emailsvc.NewConsoleServiceMock(logger, conf), logger, conf), validate)
	cli.out = out

	return fixture{cli: cli, repo: repo, class: class, out: out}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "import: no args", args: []string{"import"}, wantErr: errHelp},
		{name: "import: no file", args: []string{"import", "-class", f.class.ID}, wantErr: errHelp},
		{name: "import: help", args: []string{"import", "-h"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "grade_history", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}
}

func Test_commandLine_import(t *testing.T) {
	gradebook := writeFile(t, "gradebook.csv", gradebookCSV)

	type extra struct {
		terminal bool
		answer   string
		applied  bool
	}
	tests := []cliTest{
		{
			name:    "unknown class",
			args:    []string{"import", "-class", "lol", "-file", gradebook, "-yes"},
			wantErr: gradeimport.ErrClassNotFound,
		},
		{
			name:    "unsupported file",
			args:    []string{"import", "-class", "%s", "-file", writeFile(t, "gradebook.pdf", gradebookCSV), "-yes"},
			wantErr: gradeimport.ErrUnsupportedFormat,
		},
		{
			name:       "not a terminal",
			args:       []string{"import", "-class", "%s", "-file", gradebook},
			wantErrStr: "stdin is not a terminal, pass -yes to commit",
		},
		{
			name:    "declined",
			args:    []string{"import", "-class", "%s", "-file", gradebook},
			wantErr: errAborted,
			extra:   extra{terminal: true, answer: "n\n"},
		},
		{
			name:  "confirmed",
			args:  []string{"import", "-class", "%s", "-file", gradebook},
			extra: extra{terminal: true, answer: "yes\n", applied: true},
		},
		{
			name:  "yes",
			args:  []string{"import", "-class", "%s", "-file", gradebook, "-yes"},
			extra: extra{applied: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			ex, _ := tt.extra.(extra)
			isTerminalFunc = func(int) bool { return ex.terminal }
			readLineFunc = func() (string, error) { return ex.answer, nil }

			args := []string{"admin"}
			for _, arg := range tt.args {
				if arg == "%s" {
					arg = f.class.ID
				}
				args = append(args, arg)
			}
			checkErr(t, tt, f.cli.run(args))

			progress, err := f.repo.GetClassProgress(context.Background(), f.class.ID)
			require.NoError(t, err)
			if ex.applied {
				// Jane: essay & lab; John: lab
				assert.Len(t, progress, 3)
				assert.Contains(t, f.out.String(), "All changes were applied.")
			} else {
				assert.Empty(t, progress)
			}
		})
	}
}

func Test_commandLine_importMappingsFile(t *testing.T) {
	f := setup(t)
	isTerminalFunc = func(int) bool { return false }
	essay := f.class.Assignment(t, "Essay 1")

	gradebook := writeFile(t, "gradebook.csv", gradebookCSV)
	mappings := writeFile(t, "mappings.json", `[
		{"column": "Essay 1", "target": "assignment", "assignment_id": "`+essay.ID+`", "grading_type": "points"},
		{"column": "Lab Report", "target": "skip"}
	]`)

	err := f.cli.run([]string{"admin", "import", "-class", f.class.ID, "-file", gradebook, "-mappings", mappings, "-yes"})
	require.NoError(t, err)

	progress, err := f.repo.GetClassProgress(context.Background(), f.class.ID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, essay.ID, progress[0].AssignmentID)
	assert.Equal(t, 3.5, *progress[0].NumericGrade)

	t.Run("invalid mapping", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `[{"column": "Essay 1", "target": "bogus"}]`)
		err := f.cli.run([]string{"admin", "import", "-class", f.class.ID, "-file", gradebook, "-mappings", bad, "-yes"})
		var vErrs validator.ValidationErrors
		assert.True(t, errors.As(err, &vErrs), "got %v", err)
	})
}
