package gradeimport

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/contractgrading/core"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrStaleImport     = errors.New("the class gradebook changed since this preview was generated, please preview again")
	ErrNoMappedColumns = errors.New("map at least one column to an assignment or to absences")

	errAssignmentNotInClass = errors.New("assignment does not belong to this class")
	errStudentNotEnrolled   = errors.New("student is not enrolled in this class")

	nowFunc = time.Now // mockable
)

const notSet = "Not Set"

type (
	// Repository is the storage collaborator of the import pipeline.
	Repository interface {
		// GetClass returns ErrClassNotFound if the class does not exist.
		GetClass(ctx context.Context, classID string) (Class, error)
		GetEnrolledStudents(ctx context.Context, classID string) ([]Student, error)
		GetAssignmentsByClass(ctx context.Context, classID string) ([]Assignment, error)
		GetClassProgress(ctx context.Context, classID string) ([]Progress, error)
		GetClassAttendance(ctx context.Context, classID string) ([]Attendance, error)
		// UpdateProgress upserts the record, only touching the non-nil field.
		UpdateProgress(ctx context.Context, upd ProgressUpdate) error
		UpdateAttendance(ctx context.Context, att Attendance) error
		// BumpClassVersion increments and returns the class version.
		BumpClassVersion(ctx context.Context, classID string) (int64, error)
		// ClaimClassVersion atomically increments the class version if it equals expected,
		// and returns ErrStaleImport otherwise.
		ClaimClassVersion(ctx context.Context, classID string, expected int64) (int64, error)
	}

	Service interface {
		Assignments(ctx context.Context, classID string) ([]Assignment, error)
		SuggestMappings(ctx context.Context, classID string, columns []string) ([]AssignmentMapping, error)
		GeneratePreview(ctx context.Context, classID string, data NormalizedData, mappings []AssignmentMapping) (ImportPreview, error)
		ExecuteImport(ctx context.Context, commit Commit) (ImportResult, error)
		NotifyResult(to mail.Address, result ImportResult) error
	}

	service struct {
		repo      Repository
		mailSvc   core.EmailService
		logger    core.Logger
		conf      *core.Config
		converter Converter
		matchOpts []MatcherOption
	}
)

var _ Service = (*service)(nil)

// ConversionConfigFrom applies the configured status thresholds over the defaults.
func ConversionConfigFrom(conf *core.Config) ConversionConfig {
	cc := DefaultConversionConfig()
	if conf.Import.ExcellentThreshold > 0 {
		cc.Thresholds.Excellent = conf.Import.ExcellentThreshold
	}
	if conf.Import.CompletedThreshold > 0 {
		cc.Thresholds.Completed = conf.Import.CompletedThreshold
	}
	if conf.Import.InProgressThreshold > 0 {
		cc.Thresholds.InProgress = conf.Import.InProgressThreshold
	}
	return cc
}

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	return &service{
		repo:      repo,
		mailSvc:   mailSvc,
		logger:    logger,
		conf:      conf,
		converter: NewConverter(ConversionConfigFrom(conf)),
		matchOpts: []MatcherOption{WithFuzzyThreshold(conf.Import.FuzzyThreshold)},
	}
}

func (svc *service) Assignments(ctx context.Context, classID string) ([]Assignment, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	assignments, err := svc.repo.GetAssignmentsByClass(ctx, classID)
	return assignments, errors.Wrap(err, "getting class assignments")
}

func (svc *service) SuggestMappings(ctx context.Context, classID string, columns []string) ([]AssignmentMapping, error) {
	assignments, err := svc.Assignments(ctx, classID)
	if err != nil {
		return nil, err
	}
	return SuggestMappings(columns, assignments, svc.conf.Import.SuggestMinScore), nil
}

// classSnapshot is the read-only state a preview is computed against.
type classSnapshot struct {
	class       Class
	roster      []Student
	assignments []Assignment
	progress    []Progress
	attendance  []Attendance
}

// loadSnapshot dispatches the independent reads concurrently and waits for all of them.
func (svc *service) loadSnapshot(ctx context.Context, classID string) (classSnapshot, error) {
	var snap classSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.class, err = svc.repo.GetClass(gctx, classID)
		return err
	})
	g.Go(func() (err error) {
		snap.roster, err = svc.repo.GetEnrolledStudents(gctx, classID)
		return errors.Wrap(err, "getting enrolled students")
	})
	g.Go(func() (err error) {
		snap.assignments, err = svc.repo.GetAssignmentsByClass(gctx, classID)
		return errors.Wrap(err, "getting class assignments")
	})
	g.Go(func() (err error) {
		snap.progress, err = svc.repo.GetClassProgress(gctx, classID)
		return errors.Wrap(err, "getting class progress")
	})
	g.Go(func() (err error) {
		snap.attendance, err = svc.repo.GetClassAttendance(gctx, classID)
		return errors.Wrap(err, "getting class attendance")
	})

	if err := g.Wait(); err != nil {
		return classSnapshot{}, err
	}
	return snap, nil
}

func checkMappings(mappings []AssignmentMapping, columns []string, assignments map[string]Assignment) error {
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}

	var fldErrs []core.FieldError
	seen := make(map[string]bool, len(mappings))
	mapped := 0
	for i, m := range mappings {
		field := fmt.Sprintf("mappings[%d]", i)
		switch {
		case !known[m.Column]:
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".column", Error: fmt.Sprintf("unknown column %q", m.Column)})
		case seen[m.Column]:
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".column", Error: fmt.Sprintf("column %q is mapped more than once", m.Column)})
		}
		seen[m.Column] = true

		switch m.Target {
		case TargetAssignment:
			if _, ok := assignments[m.AssignmentID]; !ok {
				fldErrs = append(fldErrs, core.FieldError{Field: field + ".assignment_id", Error: "assignment not found in this class"})
			}
			mapped++
		case TargetAbsences:
			mapped++
		}
	}
	if fldErrs != nil {
		return core.NewValidationError(errors.New("invalid mappings"), fldErrs...)
	}
	if mapped == 0 {
		return core.NewFieldValidationError("mappings", ErrNoMappedColumns)
	}
	return nil
}

type progressKey struct{ studentID, assignmentID string }
type cellKey struct{ sourceID, column string }

func describeProgress(p Progress, ok bool, scoring ScoringType) string {
	if !ok {
		return notSet
	}
	if scoring == ScoringStatus {
		if p.Status == nil {
			return notSet
		}
		return StatusLabel(*p.Status)
	}
	if p.NumericGrade == nil {
		return notSet
	}
	return formatNumeric(*p.NumericGrade)
}

func formatNumeric(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// parseAbsences accepts a non-negative whole number ("3", "3.0").
func parseAbsences(raw string) (int, bool) {
	v, ok := parseNumber(raw)
	if !ok || v < 0 || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// GeneratePreview computes the changes an import would apply. It never writes:
// calling it again with the same inputs and unchanged storage yields the same preview.
func (svc *service) GeneratePreview(ctx context.Context, classID string, data NormalizedData, mappings []AssignmentMapping) (ImportPreview, error) {
	snap, err := svc.loadSnapshot(ctx, classID)
	if err != nil {
		return ImportPreview{}, err
	}

	assignments := make(map[string]Assignment, len(snap.assignments))
	for _, a := range snap.assignments {
		assignments[a.ID] = a
	}
	if err = checkMappings(mappings, data.AssignmentColumns, assignments); err != nil {
		return ImportPreview{}, err
	}

	preview := ImportPreview{
		ClassID:           classID,
		ClassVersion:      snap.class.Version,
		MatchedStudents:   []StudentMatchResult{},
		UnmatchedStudents: []StudentMatchResult{},
		GradeChanges:      []GradeChange{},
		AbsenceChanges:    []AbsenceChange{},
		UnmappedColumns:   []string{},
		Warnings:          []PreviewWarning{},
	}

	matcher := NewMatcher(snap.roster, svc.matchOpts...)
	matchedBy := make(map[string]string) // {student ID: first CSV name}
	for _, res := range matcher.MatchAll(data.Students) {
		if res.MatchedStudent == nil {
			preview.UnmatchedStudents = append(preview.UnmatchedStudents, res)
			continue
		}
		if prev, ok := matchedBy[res.MatchedStudent.ID]; ok {
			preview.Warnings = append(preview.Warnings, PreviewWarning{
				StudentName: res.CSVStudent.DisplayName,
				Message:     fmt.Sprintf("matched the same student as %q, the last row wins", prev),
			})
		} else {
			matchedBy[res.MatchedStudent.ID] = res.CSVStudent.DisplayName
		}
		preview.MatchedStudents = append(preview.MatchedStudents, res)
	}

	cells := make(map[cellKey]string, len(data.Grades))
	for _, g := range data.Grades {
		cells[cellKey{g.StudentSourceID, g.AssignmentSourceID}] = g.RawValue
	}
	progress := make(map[progressKey]Progress, len(snap.progress))
	for _, p := range snap.progress {
		progress[progressKey{p.StudentID, p.AssignmentID}] = p
	}
	absences := make(map[string]int, len(snap.attendance))
	for _, att := range snap.attendance {
		absences[att.StudentID] = att.Absences
	}

	mappedCols := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		switch m.Target {
		case TargetAssignment:
			mappedCols[m.Column] = true
			preview.Summary.AssignmentsMapped++
			a := assignments[m.AssignmentID]
			for _, res := range preview.MatchedStudents {
				raw, ok := cells[cellKey{res.CSVStudent.SourceID, m.Column}]
				if !ok || strings.TrimSpace(raw) == "" {
					continue
				}
				ch := svc.gradeChange(res.MatchedStudent, a, m, raw, progress)
				if ch.NeedsReview {
					preview.Summary.NeedsReview++
					preview.Warnings = append(preview.Warnings, PreviewWarning{
						StudentName: ch.StudentName,
						Column:      m.Column,
						RawValue:    raw,
						Message:     fmt.Sprintf("unrecognized %s value, converted to the default %s", m.GradingType, ch.NewValue),
					})
				}
				preview.GradeChanges = append(preview.GradeChanges, ch)
			}
		case TargetAbsences:
			mappedCols[m.Column] = true
			for _, res := range preview.MatchedStudents {
				raw, ok := cells[cellKey{res.CSVStudent.SourceID, m.Column}]
				if !ok || strings.TrimSpace(raw) == "" {
					continue
				}
				n, ok := parseAbsences(raw)
				if !ok {
					preview.Warnings = append(preview.Warnings, PreviewWarning{
						StudentName: res.MatchedStudent.Name,
						Column:      m.Column,
						RawValue:    raw,
						Message:     "absences must be a whole non-negative number, cell skipped",
					})
					continue
				}
				preview.AbsenceChanges = append(preview.AbsenceChanges, AbsenceChange{
					StudentID:       res.MatchedStudent.ID,
					StudentName:     res.MatchedStudent.Name,
					Column:          m.Column,
					RawValue:        raw,
					CurrentAbsences: absences[res.MatchedStudent.ID],
					NewAbsences:     n,
				})
			}
		}
	}
	for _, col := range data.DuplicateColumns {
		preview.Warnings = append(preview.Warnings, PreviewWarning{
			Column:  col,
			Message: "the column appears more than once, only the first one is imported",
		})
	}
	for _, col := range data.AssignmentColumns {
		if !mappedCols[col] {
			preview.UnmappedColumns = append(preview.UnmappedColumns, col)
		}
	}

	preview.Summary.TotalStudents = len(data.Students)
	preview.Summary.MatchedStudents = len(preview.MatchedStudents)
	preview.Summary.UnmatchedStudents = len(preview.UnmatchedStudents)
	preview.Summary.TotalGradeUpdates = len(preview.GradeChanges)
	preview.Summary.TotalAbsenceUpdates = len(preview.AbsenceChanges)
	preview.Summary.UnmappedColumns = len(preview.UnmappedColumns)

	svc.logger.Info("import preview generated", map[string]interface{}{
		"class_id":      classID,
		"students":      preview.Summary.TotalStudents,
		"matched":       preview.Summary.MatchedStudents,
		"grade_updates": preview.Summary.TotalGradeUpdates,
	})
	return preview, nil
}

// gradeChange converts raw for the assignment's scoring type only.
func (svc *service) gradeChange(st *Student, a Assignment, m AssignmentMapping, raw string, progress map[progressKey]Progress) GradeChange {
	cur, ok := progress[progressKey{st.ID, a.ID}]
	ch := GradeChange{
		StudentID:      st.ID,
		StudentName:    st.Name,
		AssignmentID:   a.ID,
		AssignmentName: a.Name,
		Column:         m.Column,
		RawValue:       raw,
		CurrentValue:   describeProgress(cur, ok, a.ScoringType),
		NeedsReview:    svc.converter.NeedsReview(raw, m.GradingType),
	}
	if a.ScoringType == ScoringStatus {
		status := svc.converter.ToStatus(raw, m.GradingType)
		ch.ConvertedStatus = &status
		ch.NewValue = StatusLabel(status)
	} else {
		numeric := svc.converter.ToNumeric(raw, m.GradingType)
		ch.ConvertedNumeric = &numeric
		ch.NewValue = formatNumeric(numeric)
	}
	return ch
}

// commitScope is what a commit may touch: the class assignments and its enrolled students.
type commitScope struct {
	assignments map[string]bool
	enrolled    map[string]bool
}

func (svc *service) loadCommitScope(ctx context.Context, classID string) (commitScope, error) {
	var (
		roster      []Student
		assignments []Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roster, err = svc.repo.GetEnrolledStudents(gctx, classID)
		return errors.Wrap(err, "getting enrolled students")
	})
	g.Go(func() (err error) {
		assignments, err = svc.repo.GetAssignmentsByClass(gctx, classID)
		return errors.Wrap(err, "getting class assignments")
	})
	if err := g.Wait(); err != nil {
		return commitScope{}, err
	}

	scope := commitScope{
		assignments: make(map[string]bool, len(assignments)),
		enrolled:    make(map[string]bool, len(roster)),
	}
	for _, a := range assignments {
		scope.assignments[a.ID] = true
	}
	for _, st := range roster {
		scope.enrolled[st.ID] = true
	}
	return scope, nil
}

func (scope commitScope) checkGradeChange(ch GradeChange) error {
	if !scope.assignments[ch.AssignmentID] {
		return errAssignmentNotInClass
	}
	if !scope.enrolled[ch.StudentID] {
		return errStudentNotEnrolled
	}
	return nil
}

// ExecuteImport applies every change on its own. A failing change is recorded and skipped;
// changes applied before it stay applied. Cancelling ctx does not stop the batch.
// Changes outside the class (foreign assignment, student not enrolled) fail individually.
// A non-zero ClassVersion is claimed before any write, so only one commit per version goes through.
func (svc *service) ExecuteImport(ctx context.Context, commit Commit) (ImportResult, error) {
	ctx = context.WithoutCancel(ctx)

	class, err := svc.repo.GetClass(ctx, commit.ClassID)
	if err != nil {
		return ImportResult{}, err
	}
	if commit.ClassVersion != 0 && commit.ClassVersion != class.Version {
		return ImportResult{}, ErrStaleImport
	}
	scope, err := svc.loadCommitScope(ctx, class.ID)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{
		ID:            uuid.New().String(),
		ClassID:       class.ID,
		Errors:        []ImportError{},
		FailedChanges: []GradeChange{},
		ClassVersion:  class.Version,
	}

	claimed := commit.ClassVersion != 0
	if claimed {
		if result.ClassVersion, err = svc.repo.ClaimClassVersion(ctx, class.ID, commit.ClassVersion); err != nil {
			return ImportResult{}, err
		}
	}

	touched := make(map[string]bool)
	now := nowFunc().UTC()

	for _, ch := range commit.GradeChanges {
		err := scope.checkGradeChange(ch)
		if err == nil {
			err = svc.applyGradeChange(ctx, ch, now)
		}
		if err != nil {
			result.Errors = append(result.Errors, ImportError{
				StudentID:  ch.StudentID,
				Student:    ch.StudentName,
				Assignment: ch.AssignmentName,
				Message:    err.Error(),
			})
			result.FailedChanges = append(result.FailedChanges, ch)
			svc.logger.Warn("import: grade change failed", err, map[string]interface{}{
				"import_id":     result.ID,
				"class_id":      class.ID,
				"student_id":    ch.StudentID,
				"assignment_id": ch.AssignmentID,
			})
			continue
		}
		result.ProcessedGrades++
		touched[ch.StudentID] = true
	}

	for _, ch := range commit.AbsenceChanges {
		var err error
		if !scope.enrolled[ch.StudentID] {
			err = errStudentNotEnrolled
		} else {
			err = svc.repo.UpdateAttendance(ctx, Attendance{
				ClassID:     class.ID,
				StudentID:   ch.StudentID,
				Absences:    ch.NewAbsences,
				LastUpdated: now,
			})
		}
		if err != nil {
			result.Errors = append(result.Errors, ImportError{
				StudentID:  ch.StudentID,
				Student:    ch.StudentName,
				Assignment: absencesLabel,
				Message:    err.Error(),
			})
			svc.logger.Warn("import: absence change failed", err, map[string]interface{}{
				"import_id":  result.ID,
				"class_id":   class.ID,
				"student_id": ch.StudentID,
			})
			continue
		}
		result.ProcessedAbsences++
		touched[ch.StudentID] = true
	}

	result.Success = len(result.Errors) == 0
	result.ProcessedStudents = len(touched)

	if !claimed && result.ProcessedGrades+result.ProcessedAbsences > 0 {
		if version, err := svc.repo.BumpClassVersion(ctx, class.ID); err != nil {
			svc.logger.Error("import: bumping class version", err, map[string]interface{}{"class_id": class.ID})
		} else {
			result.ClassVersion = version
		}
	}

	svc.logger.Info("import executed", map[string]interface{}{
		"import_id":          result.ID,
		"class_id":           class.ID,
		"processed_grades":   result.ProcessedGrades,
		"processed_absences": result.ProcessedAbsences,
		"errors":             len(result.Errors),
	})
	return result, nil
}

func (svc *service) applyGradeChange(ctx context.Context, ch GradeChange, now time.Time) error {
	if (ch.ConvertedStatus == nil) == (ch.ConvertedNumeric == nil) {
		return errors.New("change must carry exactly one of converted_status or converted_numeric")
	}
	return svc.repo.UpdateProgress(ctx, ProgressUpdate{
		StudentID:    ch.StudentID,
		AssignmentID: ch.AssignmentID,
		Status:       ch.ConvertedStatus,
		NumericGrade: ch.ConvertedNumeric,
		LastUpdated:  now,
	})
}
