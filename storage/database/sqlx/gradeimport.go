package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
)

type (
	studentRow struct {
		ID       string      `db:"id"`
		Name     string      `db:"name"`
		Email    null.String `db:"email"`
		Username null.String `db:"username"`
		SISID    null.String `db:"sis_id"`
	}

	assignmentRow struct {
		ID          string `db:"id"`
		ClassID     string `db:"class_id"`
		Name        string `db:"name"`
		ScoringType string `db:"scoring_type"`
		Position    int    `db:"position"`
	}

	progressRow struct {
		StudentID    string       `db:"student_id"`
		AssignmentID string       `db:"assignment_id"`
		Status       null.Int     `db:"status"`
		NumericGrade null.Float64 `db:"numeric_grade"`
		LastUpdated  time.Time    `db:"last_updated"`
	}

	attendanceRow struct {
		ClassID     string    `db:"class_id"`
		StudentID   string    `db:"student_id"`
		Absences    int       `db:"absences"`
		LastUpdated time.Time `db:"last_updated"`
	}
)

const (
	getClassQuery = `SELECT id, name, version FROM classes WHERE id = $1`

	enrolledStudentsQuery = `SELECT s.id, s.name, s.email, s.username, s.sis_id
FROM students s JOIN enrollments e ON e.student_id = s.id
WHERE e.class_id = $1`

	classAssignmentsQuery = `SELECT id, class_id, name, scoring_type, position FROM assignments WHERE class_id = $1`

	classProgressQuery = `SELECT p.student_id, p.assignment_id, p.status, p.numeric_grade, p.last_updated
FROM progress p JOIN assignments a ON a.id = p.assignment_id
WHERE a.class_id = $1`

	classAttendanceQuery = `SELECT class_id, student_id, absences, last_updated FROM attendance WHERE class_id = $1`

	// COALESCE keeps the column the update does not carry.
	upsertProgressQuery = `INSERT INTO progress (id, student_id, assignment_id, status, numeric_grade, last_updated)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (student_id, assignment_id) DO UPDATE SET
	status = COALESCE(EXCLUDED.status, progress.status),
	numeric_grade = COALESCE(EXCLUDED.numeric_grade, progress.numeric_grade),
	last_updated = EXCLUDED.last_updated`

	upsertAttendanceQuery = `INSERT INTO attendance (class_id, student_id, absences, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (class_id, student_id) DO UPDATE SET
	absences = EXCLUDED.absences,
	last_updated = EXCLUDED.last_updated`

	bumpClassVersionQuery  = `UPDATE classes SET version = version + 1 WHERE id = $1 RETURNING version`
	claimClassVersionQuery = `UPDATE classes SET version = version + 1 WHERE id = $1 AND version = $2 RETURNING version`
)

var (
	studentOrdering = []core.DBOrdering{
		{Field: "e.created_at", Ascending: true},
		{Field: "s.id", Ascending: true},
	}
	assignmentOrdering = []core.DBOrdering{
		{Field: "position", Ascending: true},
		{Field: "name", Ascending: true},
	}
)

type gradeImportRepository struct {
	exec core.DBExecutor
}

var _ gradeimport.Repository = (*gradeImportRepository)(nil) // interface compliance check

func NewGradeImportRepository(exec core.DBExecutor) *gradeImportRepository {
	return &gradeImportRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to gradeimport.ErrClassNotFound
func (repo gradeImportRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return gradeimport.ErrClassNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo gradeImportRepository) GetClass(ctx context.Context, classID string) (gradeimport.Class, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return gradeimport.Class{}, gradeimport.ErrClassNotFound
	}
	var class gradeimport.Class
	if err := sqlx.GetContext(ctx, repo.exec, &class, getClassQuery, classID); err != nil {
		return gradeimport.Class{}, repo.trapNoRowsErr(err, "getting class")
	}
	return class, nil
}

func (repo gradeImportRepository) GetEnrolledStudents(ctx context.Context, classID string) ([]gradeimport.Student, error) {
	var rows []studentRow
	q := enrolledStudentsQuery + core.OrderBy(studentOrdering...)
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "selecting enrolled students")
	}
	students := make([]gradeimport.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, gradeimport.Student{
			ID:       r.ID,
			Name:     r.Name,
			Email:    r.Email.String,
			Username: r.Username.String,
			SISID:    r.SISID.String,
		})
	}
	return students, nil
}

func (repo gradeImportRepository) GetAssignmentsByClass(ctx context.Context, classID string) ([]gradeimport.Assignment, error) {
	var rows []assignmentRow
	q := classAssignmentsQuery + core.OrderBy(assignmentOrdering...)
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "selecting class assignments")
	}
	assignments := make([]gradeimport.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, gradeimport.Assignment{
			ID:          r.ID,
			ClassID:     r.ClassID,
			Name:        r.Name,
			ScoringType: gradeimport.ScoringType(r.ScoringType),
			Position:    r.Position,
		})
	}
	return assignments, nil
}

func (repo gradeImportRepository) GetClassProgress(ctx context.Context, classID string) ([]gradeimport.Progress, error) {
	var rows []progressRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, classProgressQuery, classID); err != nil {
		return nil, errors.Wrap(err, "selecting class progress")
	}
	progress := make([]gradeimport.Progress, 0, len(rows))
	for _, r := range rows {
		p := gradeimport.Progress{
			StudentID:    r.StudentID,
			AssignmentID: r.AssignmentID,
			NumericGrade: r.NumericGrade.Ptr(),
			LastUpdated:  r.LastUpdated,
		}
		if r.Status.Valid {
			status := r.Status.Int
			p.Status = &status
		}
		progress = append(progress, p)
	}
	return progress, nil
}

func (repo gradeImportRepository) GetClassAttendance(ctx context.Context, classID string) ([]gradeimport.Attendance, error) {
	var rows []attendanceRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, classAttendanceQuery, classID); err != nil {
		return nil, errors.Wrap(err, "selecting class attendance")
	}
	attendance := make([]gradeimport.Attendance, 0, len(rows))
	for _, r := range rows {
		attendance = append(attendance, gradeimport.Attendance(r))
	}
	return attendance, nil
}

func (repo gradeImportRepository) UpdateProgress(ctx context.Context, upd gradeimport.ProgressUpdate) error {
	_, err := repo.exec.ExecContext(ctx, upsertProgressQuery,
		uuid.New().String(),
		upd.StudentID,
		upd.AssignmentID,
		null.IntFromPtr(upd.Status),
		null.Float64FromPtr(upd.NumericGrade),
		upd.LastUpdated.UTC(),
	)
	return errors.Wrap(err, "upserting progress")
}

func (repo gradeImportRepository) UpdateAttendance(ctx context.Context, att gradeimport.Attendance) error {
	_, err := repo.exec.ExecContext(ctx, upsertAttendanceQuery, att.ClassID, att.StudentID, att.Absences, att.LastUpdated.UTC())
	return errors.Wrap(err, "upserting attendance")
}

func (repo gradeImportRepository) BumpClassVersion(ctx context.Context, classID string) (int64, error) {
	var version int64
	if err := sqlx.GetContext(ctx, repo.exec, &version, bumpClassVersionQuery, classID); err != nil {
		return 0, repo.trapNoRowsErr(err, "bumping class version")
	}
	return version, nil
}

// ClaimClassVersion bumps the version only if it still equals expected.
func (repo gradeImportRepository) ClaimClassVersion(ctx context.Context, classID string, expected int64) (int64, error) {
	var version int64
	if err := sqlx.GetContext(ctx, repo.exec, &version, claimClassVersionQuery, classID, expected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, gradeimport.ErrStaleImport
		}
		return 0, errors.Wrap(err, "claiming class version")
	}
	return version, nil
}
