package gradeimport

import "time"

// GradingType is how the raw values of an external column should be read.
type GradingType string

const (
	GradingPoints     GradingType = "points"
	GradingPercentage GradingType = "percentage"
	GradingLetter     GradingType = "letter"
	GradingStatus     GradingType = "status"
)

var GradingTypes = []GradingType{GradingPoints, GradingPercentage, GradingLetter, GradingStatus}

// ScoringType is how an internal assignment records progress.
type ScoringType string

const (
	ScoringStatus  ScoringType = "status"  // 0..3
	ScoringNumeric ScoringType = "numeric" // 0.0..4.0
)

// MappingTarget is what an external column is bound to.
type MappingTarget string

const (
	TargetAssignment MappingTarget = "assignment"
	TargetAbsences   MappingTarget = "absences"
	TargetSkip       MappingTarget = "skip"
)

// MatchType names the strategy that resolved a student.
type MatchType string

const (
	MatchExactUsername MatchType = "exact_username"
	MatchExactEmail    MatchType = "exact_email"
	MatchExactName     MatchType = "exact_name"
	MatchFuzzyName     MatchType = "fuzzy_name"
	MatchNotFound      MatchType = "not_found"
)

// Progress statuses.
const (
	StatusNotStarted = 0
	StatusInProgress = 1
	StatusCompleted  = 2
	StatusExcellent  = 3
)

const absencesLabel = "Absences"

// Internal records (owned by the storage collaborator).
type (
	Class struct {
		ID      string `json:"id" db:"id"`
		Name    string `json:"name" db:"name"`
		Version int64  `json:"version" db:"version"`
	}

	Student struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
		SISID    string `json:"sis_id"`
	}

	Assignment struct {
		ID          string      `json:"id"`
		ClassID     string      `json:"class_id"`
		Name        string      `json:"name"`
		ScoringType ScoringType `json:"scoring_type"`
		Position    int         `json:"position"`
	}

	Progress struct {
		StudentID    string    `json:"student_id"`
		AssignmentID string    `json:"assignment_id"`
		Status       *int      `json:"status"`
		NumericGrade *float64  `json:"numeric_grade"`
		LastUpdated  time.Time `json:"last_updated"`
	}

	// ProgressUpdate sets exactly one of Status or NumericGrade.
	ProgressUpdate struct {
		StudentID    string
		AssignmentID string
		Status       *int
		NumericGrade *float64
		LastUpdated  time.Time
	}

	Attendance struct {
		ClassID     string    `json:"class_id"`
		StudentID   string    `json:"student_id"`
		Absences    int       `json:"absences"`
		LastUpdated time.Time `json:"last_updated"`
	}
)

// Import session data. None of it is persisted.
type (
	// NormalizedStudent is one row of the external source.
	NormalizedStudent struct {
		SourceID    string `json:"source_id"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email,omitempty"`
		SISID       string `json:"sis_id,omitempty"`
		Username    string `json:"username,omitempty"`
	}

	// NormalizedGrade is one non-empty cell; RawValue is kept untouched.
	NormalizedGrade struct {
		StudentSourceID    string `json:"student_source_id"`
		AssignmentSourceID string `json:"assignment_source_id"`
		RawValue           string `json:"raw_value"`
		SourceType         string `json:"source_type"`
	}

	NormalizedData struct {
		Source            string              `json:"source"`
		Headers           []string            `json:"headers"`
		AssignmentColumns []string            `json:"assignment_columns"`
		Students          []NormalizedStudent `json:"students"`
		Grades            []NormalizedGrade   `json:"grades"`
		// DuplicateColumns repeat an earlier header; only the first occurrence is read.
		DuplicateColumns []string `json:"duplicate_columns,omitempty"`
	}

	AssignmentMapping struct {
		Column       string        `json:"column" validate:"notblank"`
		Target       MappingTarget `json:"target" validate:"required,mappingtarget"`
		AssignmentID string        `json:"assignment_id,omitempty" validate:"required_if=Target assignment"`
		GradingType  GradingType   `json:"grading_type,omitempty" validate:"required_if=Target assignment,gradingtype"`
	}

	StudentMatchResult struct {
		CSVStudent     NormalizedStudent `json:"csv_student"`
		MatchedStudent *Student          `json:"matched_student"`
		MatchType      MatchType         `json:"match_type"`
		Confidence     int               `json:"confidence"`
	}

	GradeChange struct {
		StudentID        string   `json:"student_id" validate:"required"`
		StudentName      string   `json:"student_name"`
		AssignmentID     string   `json:"assignment_id" validate:"required"`
		AssignmentName   string   `json:"assignment_name"`
		Column           string   `json:"column"`
		RawValue         string   `json:"raw_value"`
		CurrentValue     string   `json:"current_value"`
		NewValue         string   `json:"new_value"`
		ConvertedStatus  *int     `json:"converted_status,omitempty" validate:"omitempty,min=0,max=3"`
		ConvertedNumeric *float64 `json:"converted_numeric,omitempty" validate:"omitempty,min=0,max=4"`
		NeedsReview      bool     `json:"needs_review,omitempty"`
	}

	AbsenceChange struct {
		StudentID       string `json:"student_id" validate:"required"`
		StudentName     string `json:"student_name"`
		Column          string `json:"column"`
		RawValue        string `json:"raw_value"`
		CurrentAbsences int    `json:"current_absences"`
		NewAbsences     int    `json:"new_absences" validate:"min=0"`
	}

	PreviewWarning struct {
		StudentName string `json:"student_name"`
		Column      string `json:"column"`
		RawValue    string `json:"raw_value"`
		Message     string `json:"message"`
	}

	PreviewSummary struct {
		TotalStudents       int `json:"total_students"`
		MatchedStudents     int `json:"matched_students"`
		UnmatchedStudents   int `json:"unmatched_students"`
		TotalGradeUpdates   int `json:"total_grade_updates"`
		TotalAbsenceUpdates int `json:"total_absence_updates"`
		AssignmentsMapped   int `json:"assignments_mapped"`
		UnmappedColumns     int `json:"unmapped_columns"`
		NeedsReview         int `json:"needs_review"`
	}

	ImportPreview struct {
		ClassID           string               `json:"class_id"`
		ClassVersion      int64                `json:"class_version"`
		MatchedStudents   []StudentMatchResult `json:"matched_students"`
		UnmatchedStudents []StudentMatchResult `json:"unmatched_students"`
		GradeChanges      []GradeChange        `json:"grade_changes"`
		AbsenceChanges    []AbsenceChange      `json:"absence_changes"`
		UnmappedColumns   []string             `json:"unmapped_columns"`
		Warnings          []PreviewWarning     `json:"warnings"`
		Summary           PreviewSummary       `json:"summary"`
	}

	// Commit is the reviewed subset of a preview to apply.
	// A zero ClassVersion skips the staleness check.
	Commit struct {
		ClassID        string          `json:"-"`
		ClassVersion   int64           `json:"class_version" validate:"min=0"`
		GradeChanges   []GradeChange   `json:"grade_changes" validate:"dive"`
		AbsenceChanges []AbsenceChange `json:"absence_changes" validate:"dive"`
	}

	ImportError struct {
		StudentID  string `json:"student_id"`
		Student    string `json:"student"`
		Assignment string `json:"assignment"`
		Message    string `json:"message"`
	}

	ImportResult struct {
		ID                string        `json:"id"`
		ClassID           string        `json:"class_id"`
		Success           bool          `json:"success"`
		ProcessedStudents int           `json:"processed_students"`
		ProcessedGrades   int           `json:"processed_grades"`
		ProcessedAbsences int           `json:"processed_absences"`
		Errors            []ImportError `json:"errors"`
		FailedChanges     []GradeChange `json:"failed_changes"`
		ClassVersion      int64         `json:"class_version"`
	}
)

func (m AssignmentMapping) isAssignment() bool {
	return m.Target == TargetAssignment && m.AssignmentID != ""
}
