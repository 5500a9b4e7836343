package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/trezcool/contractgrading/core/gradeimport"
)

var errAborted = errors.New("import aborted")

type importOptions struct {
	classID      string
	file         string
	mappingsFile string
	yes          bool
}

func (cli *commandLine) importGradebook(opts importOptions) error {
	ctx := context.Background()

	f, err := os.Open(opts.file)
	if err != nil {
		return errors.Wrap(err, "opening gradebook")
	}
	data, err := gradeimport.NormalizeFile(filepath.Base(opts.file), f)
	_ = f.Close()
	if err != nil {
		return errors.Wrap(err, "normalizing gradebook")
	}

	mappings, err := cli.loadMappings(ctx, opts, data.AssignmentColumns)
	if err != nil {
		return err
	}
	cli.printMappings(mappings)

	preview, err := cli.importSvc.GeneratePreview(ctx, opts.classID, data, mappings)
	if err != nil {
		return errors.Wrap(err, "generating preview")
	}
	cli.printPreview(preview)

	total := len(preview.GradeChanges) + len(preview.AbsenceChanges)
	if total == 0 {
		color.New(color.FgYellow).Fprintln(cli.out, "Nothing to import.")
		return nil
	}
	if !opts.yes {
		ok, err := cli.confirm(fmt.Sprintf("Apply %d change(s)? [y/N] ", total))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	result, err := cli.importSvc.ExecuteImport(ctx, gradeimport.Commit{
		ClassID:        opts.classID,
		ClassVersion:   preview.ClassVersion,
		GradeChanges:   preview.GradeChanges,
		AbsenceChanges: preview.AbsenceChanges,
	})
	if err != nil {
		return errors.Wrap(err, "executing import")
	}
	return cli.printResult(result)
}

// loadMappings reads the mappings file, or suggests mappings from the column names.
func (cli *commandLine) loadMappings(ctx context.Context, opts importOptions, columns []string) ([]gradeimport.AssignmentMapping, error) {
	if opts.mappingsFile == "" {
		mappings, err := cli.importSvc.SuggestMappings(ctx, opts.classID, columns)
		return mappings, errors.Wrap(err, "suggesting mappings")
	}

	content, err := os.ReadFile(opts.mappingsFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading mappings")
	}
	var mappings []gradeimport.AssignmentMapping
	if err = json.Unmarshal(content, &mappings); err != nil {
		return nil, errors.Wrap(err, "decoding mappings")
	}
	for i, m := range mappings {
		if err = cli.validate.Struct(m); err != nil {
			return nil, errors.Wrapf(err, "mapping #%d (%s)", i+1, m.Column)
		}
	}
	return mappings, nil
}

func (cli *commandLine) confirm(prompt string) (bool, error) {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return false, errors.New("stdin is not a terminal, pass -yes to commit")
	}
	fmt.Fprint(cli.out, prompt)
	answer, err := readLineFunc()
	if err != nil {
		return false, errors.Wrap(err, "reading answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (cli *commandLine) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

func (cli *commandLine) printMappings(mappings []gradeimport.AssignmentMapping) {
	color.New(color.FgCyan).Fprintln(cli.out, "\nColumn mappings")
	table := cli.newTable("Column", "Target", "Assignment", "Grading")
	for _, m := range mappings {
		table.Append([]string{m.Column, string(m.Target), m.AssignmentID, string(m.GradingType)})
	}
	table.Render()
}

func (cli *commandLine) printPreview(p gradeimport.ImportPreview) {
	s := p.Summary
	color.New(color.FgCyan).Fprintln(cli.out, "\nPreview")
	fmt.Fprintf(cli.out, "Students: %d matched, %d unmatched (of %d)\n", s.MatchedStudents, s.UnmatchedStudents, s.TotalStudents)
	fmt.Fprintf(cli.out, "Updates: %d grade(s), %d absence record(s), %d need review\n", s.TotalGradeUpdates, s.TotalAbsenceUpdates, s.NeedsReview)

	if len(p.GradeChanges) > 0 {
		table := cli.newTable("Student", "Assignment", "Raw", "Current", "New", "")
		for _, ch := range p.GradeChanges {
			review := ""
			if ch.NeedsReview {
				review = "review"
			}
			table.Append([]string{ch.StudentName, ch.AssignmentName, ch.RawValue, ch.CurrentValue, ch.NewValue, review})
		}
		table.Render()
	}
	if len(p.AbsenceChanges) > 0 {
		table := cli.newTable("Student", "Current absences", "New absences")
		for _, ch := range p.AbsenceChanges {
			table.Append([]string{ch.StudentName, strconv.Itoa(ch.CurrentAbsences), strconv.Itoa(ch.NewAbsences)})
		}
		table.Render()
	}

	warn := color.New(color.FgYellow)
	for _, st := range p.UnmatchedStudents {
		warn.Fprintf(cli.out, "unmatched: %s\n", st.CSVStudent.DisplayName)
	}
	for _, w := range p.Warnings {
		warn.Fprintf(cli.out, "warning: %s [%s] %q: %s\n", w.StudentName, w.Column, w.RawValue, w.Message)
	}
}

func (cli *commandLine) printResult(r gradeimport.ImportResult) error {
	fmt.Fprintf(cli.out, "\nImport %s: %d grade(s), %d absence record(s), %d student(s)\n",
		r.ID, r.ProcessedGrades, r.ProcessedAbsences, r.ProcessedStudents)
	if r.Success {
		color.New(color.FgGreen).Fprintln(cli.out, "All changes were applied.")
		return nil
	}

	fail := color.New(color.FgRed)
	for _, e := range r.Errors {
		fail.Fprintf(cli.out, "failed: %s [%s]: %s\n", e.Student, e.Assignment, e.Message)
	}
	return errors.Errorf("%d change(s) failed", len(r.Errors))
}
