package gradeimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/contractgrading/core"
)

const (
	SourceCSV  = "csv"
	SourceXLSX = "xlsx"
)

var (
	ErrEmptyFile            = errors.New("the uploaded file has no header row")
	ErrMissingStudentColumn = errors.New("no student name column found (expected \"Student\", \"Name\" or \"First Name\"/\"Last Name\")")
	ErrUnsupportedFormat    = errors.New("unsupported file format (expected .csv or .xlsx)")

	utf8BOM = []byte("\ufeff")

	// identity & metadata columns of gradebook exports (lowercased)
	systemColumns = map[string]bool{
		"student":        true,
		"student name":   true,
		"name":           true,
		"first name":     true,
		"last name":      true,
		"id":             true,
		"student id":     true,
		"sis user id":    true,
		"sis login id":   true,
		"login id":       true,
		"integration id": true,
		"username":       true,
		"email":          true,
		"email address":  true,
		"section":        true,
		"sections":       true,
		"root account":   true,
	}

	// calculated columns; Canvas also prefixes these with assignment group names
	calculatedSuffixes = []string{
		"current score", "unposted current score", "final score", "unposted final score",
		"current grade", "unposted current grade", "final grade", "unposted final grade",
		"current points", "unposted current points", "final points", "unposted final points",
		"override score", "override grade",
	}

	nameColumns     = []string{"student", "student name", "name"}
	emailColumns    = []string{"email", "email address"}
	sisIDColumns    = []string{"sis user id", "student id"}
	usernameColumns = []string{"sis login id", "login id", "username"}

	// pseudo-rows of Canvas exports, compared after NormalizeName
	pseudoRows = map[string]bool{
		"points possible": true,
		"test student":    true,
	}
)

// NoAssignmentColumnsError is returned when every column of the file is a system column.
type NoAssignmentColumnsError struct {
	Headers []string
}

func (err *NoAssignmentColumnsError) Error() string {
	return fmt.Sprintf("no assignment columns found among %d columns", len(err.Headers))
}

// ParseCSV tokenizes comma-delimited, double-quote-escaped text whose first record holds the headers.
func ParseCSV(r io.Reader) ([]string, [][]string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading csv")
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1 // ragged rows are padded later

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, core.NewFieldValidationError("file", errors.Wrap(err, "malformed csv"))
	}
	return splitHeader(records)
}

// ParseXLSX reads the first sheet of a workbook the same way ParseCSV reads a file.
func ParseXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, core.NewFieldValidationError("file", errors.Wrap(err, "malformed xlsx"))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading sheet %q", sheets[0])
	}
	return splitHeader(records)
}

func splitHeader(records [][]string) ([]string, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyFile
	}
	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, core.CleanString(h))
	}
	if len(headers) == 0 {
		return nil, nil, ErrEmptyFile
	}
	return headers, records[1:], nil
}

func isSystemColumn(header string) bool {
	h := core.CollapseSpaces(header, true /* lower */)
	if systemColumns[h] {
		return true
	}
	for _, suffix := range calculatedSuffixes {
		if h == suffix || strings.HasSuffix(h, " "+suffix) {
			return true
		}
	}
	return false
}

// ExtractAssignmentColumns returns, in file order, the headers that are neither blank, duplicated nor system columns.
func ExtractAssignmentColumns(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	cols := make([]string, 0, len(headers))
	for _, h := range headers {
		h = core.CleanString(h)
		if h == "" || seen[h] || isSystemColumn(h) {
			continue
		}
		seen[h] = true
		cols = append(cols, h)
	}
	return cols
}

// duplicateColumns lists, once each, the assignment headers that appear more than once.
func duplicateColumns(headers []string) []string {
	count := make(map[string]int, len(headers))
	var dups []string
	for _, h := range headers {
		h = core.CleanString(h)
		if h == "" || isSystemColumn(h) {
			continue
		}
		count[h]++
		if count[h] == 2 {
			dups = append(dups, h)
		}
	}
	return dups
}

type columnIndex map[string]int // {lowercased header: first position}

func newColumnIndex(headers []string) columnIndex {
	idx := make(columnIndex, len(headers))
	for i, h := range headers {
		key := core.CollapseSpaces(h, true /* lower */)
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// lookup returns the position of the first of `names` present, or -1.
func (idx columnIndex) lookup(names ...string) int {
	for _, n := range names {
		if i, ok := idx[n]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Normalize turns parsed rows into source-agnostic students and grade cells.
// Rows without a student name are dropped; blank cells produce no grade.
func Normalize(headers []string, rows [][]string, source string) (NormalizedData, error) {
	idx := newColumnIndex(headers)

	nameIdx := idx.lookup(nameColumns...)
	firstIdx, lastIdx := idx.lookup("first name"), idx.lookup("last name")
	if nameIdx < 0 && (firstIdx < 0 || lastIdx < 0) {
		return NormalizedData{}, ErrMissingStudentColumn
	}

	assignmentCols := ExtractAssignmentColumns(headers)
	if len(assignmentCols) == 0 {
		return NormalizedData{}, &NoAssignmentColumnsError{Headers: headers}
	}
	colPositions := make([]int, len(assignmentCols))
	for i, col := range assignmentCols {
		for j, h := range headers {
			if core.CleanString(h) == col {
				colPositions[i] = j
				break
			}
		}
	}

	emailIdx := idx.lookup(emailColumns...)
	sisIdx := idx.lookup(sisIDColumns...)
	unameIdx := idx.lookup(usernameColumns...)

	data := NormalizedData{
		Source:            source,
		Headers:           headers,
		AssignmentColumns: assignmentCols,
		Students:          make([]NormalizedStudent, 0, len(rows)),
		DuplicateColumns:  duplicateColumns(headers),
	}
	for i, row := range rows {
		name := core.CollapseSpaces(cell(row, nameIdx))
		if name == "" && nameIdx < 0 {
			first, last := core.CleanString(cell(row, firstIdx)), core.CleanString(cell(row, lastIdx))
			if first != "" || last != "" {
				name = strings.Trim(last+", "+first, ", ")
			}
		}
		if name == "" || pseudoRows[NormalizeName(name)] {
			continue
		}

		student := NormalizedStudent{
			SourceID:    strconv.Itoa(i + 2), // line number, header is line 1
			DisplayName: name,
			Email:       core.CleanString(cell(row, emailIdx)),
			SISID:       core.CleanString(cell(row, sisIdx)),
			Username:    core.CleanString(cell(row, unameIdx)),
		}
		data.Students = append(data.Students, student)

		for j, col := range assignmentCols {
			raw := cell(row, colPositions[j])
			if strings.TrimSpace(raw) == "" {
				continue
			}
			data.Grades = append(data.Grades, NormalizedGrade{
				StudentSourceID:    student.SourceID,
				AssignmentSourceID: col,
				RawValue:           raw,
				SourceType:         source,
			})
		}
	}
	return data, nil
}

// NormalizeFile parses and normalizes an uploaded gradebook, picking the parser from the file extension.
func NormalizeFile(filename string, r io.Reader) (NormalizedData, error) {
	var (
		headers []string
		rows    [][]string
		err     error
		source  string
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", "":
		source = SourceCSV
		headers, rows, err = ParseCSV(r)
	case ".xlsx":
		source = SourceXLSX
		headers, rows, err = ParseXLSX(r)
	default:
		return NormalizedData{}, ErrUnsupportedFormat
	}
	if err != nil {
		return NormalizedData{}, err
	}
	return Normalize(headers, rows, source)
}
