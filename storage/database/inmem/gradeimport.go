package inmemdb

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/trezcool/contractgrading/core/gradeimport"
)

var pkCount int64

func nextID(prefix string) string {
	return prefix + strconv.FormatInt(atomic.AddInt64(&pkCount, 1), 10)
}

type gradeImportRepository struct {
	db *DB

	hookMu             sync.RWMutex
	updateProgressHook func(upd gradeimport.ProgressUpdate) error
}

var _ gradeimport.Repository = (*gradeImportRepository)(nil) // interface compliance check

func NewGradeImportRepository(db *DB) *gradeImportRepository {
	return &gradeImportRepository{db: db}
}

// SetUpdateProgressHook installs fn to run before every progress update; a non-nil error aborts that update.
func (repo *gradeImportRepository) SetUpdateProgressHook(fn func(upd gradeimport.ProgressUpdate) error) {
	repo.hookMu.Lock()
	repo.updateProgressHook = fn
	repo.hookMu.Unlock()
}

// Seeding

func (repo *gradeImportRepository) CreateClass(name string) gradeimport.Class {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	class := gradeimport.Class{ID: nextID("class-"), Name: name, Version: 1}
	repo.db.classes[class.ID] = &class
	return class
}

func (repo *gradeImportRepository) CreateStudent(st gradeimport.Student, classIDs ...string) gradeimport.Student {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st.ID = nextID("student-")
	repo.db.students[st.ID] = st
	for _, classID := range classIDs {
		repo.db.enrollments[classID] = append(repo.db.enrollments[classID], st.ID)
	}
	return st
}

func (repo *gradeImportRepository) CreateAssignment(a gradeimport.Assignment) gradeimport.Assignment {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = nextID("assignment-")
	repo.db.assignments = append(repo.db.assignments, a)
	return a
}

// Repository

func (repo *gradeImportRepository) GetClass(_ context.Context, classID string) (gradeimport.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if class, ok := repo.db.classes[classID]; ok {
		return *class, nil
	}
	return gradeimport.Class{}, gradeimport.ErrClassNotFound
}

func (repo *gradeImportRepository) GetEnrolledStudents(_ context.Context, classID string) ([]gradeimport.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := repo.db.enrollments[classID]
	students := make([]gradeimport.Student, 0, len(ids))
	for _, id := range ids {
		students = append(students, repo.db.students[id])
	}
	return students, nil
}

func (repo *gradeImportRepository) GetAssignmentsByClass(_ context.Context, classID string) ([]gradeimport.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var assignments []gradeimport.Assignment
	for _, a := range repo.db.assignments {
		if a.ClassID == classID {
			assignments = append(assignments, a)
		}
	}
	return assignments, nil
}

func (repo *gradeImportRepository) classAssignmentIDs(classID string) map[string]bool {
	ids := make(map[string]bool)
	for _, a := range repo.db.assignments {
		if a.ClassID == classID {
			ids[a.ID] = true
		}
	}
	return ids
}

func (repo *gradeImportRepository) GetClassProgress(_ context.Context, classID string) ([]gradeimport.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := repo.classAssignmentIDs(classID)
	var progress []gradeimport.Progress
	for _, p := range repo.db.progress {
		if ids[p.AssignmentID] {
			progress = append(progress, p)
		}
	}
	return progress, nil
}

func (repo *gradeImportRepository) GetClassAttendance(_ context.Context, classID string) ([]gradeimport.Attendance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var attendance []gradeimport.Attendance
	for _, att := range repo.db.attendance {
		if att.ClassID == classID {
			attendance = append(attendance, att)
		}
	}
	return attendance, nil
}

func (repo *gradeImportRepository) UpdateProgress(_ context.Context, upd gradeimport.ProgressUpdate) error {
	repo.hookMu.RLock()
	hook := repo.updateProgressHook
	repo.hookMu.RUnlock()
	if hook != nil {
		if err := hook(upd); err != nil {
			return err
		}
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[upd.StudentID]; !ok {
		return errors.Errorf("student %q not found", upd.StudentID)
	}
	upd.Status, upd.NumericGrade = copyInt(upd.Status), copyFloat(upd.NumericGrade)

	// only save set fields
	for i, p := range repo.db.progress {
		if p.StudentID == upd.StudentID && p.AssignmentID == upd.AssignmentID {
			if upd.Status != nil {
				p.Status = upd.Status
			}
			if upd.NumericGrade != nil {
				p.NumericGrade = upd.NumericGrade
			}
			p.LastUpdated = upd.LastUpdated
			repo.db.progress[i] = p
			repo.db.writes++
			return nil
		}
	}
	repo.db.progress = append(repo.db.progress, gradeimport.Progress{
		StudentID:    upd.StudentID,
		AssignmentID: upd.AssignmentID,
		Status:       upd.Status,
		NumericGrade: upd.NumericGrade,
		LastUpdated:  upd.LastUpdated,
	})
	repo.db.writes++
	return nil
}

func (repo *gradeImportRepository) UpdateAttendance(_ context.Context, att gradeimport.Attendance) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[att.StudentID]; !ok {
		return errors.Errorf("student %q not found", att.StudentID)
	}
	repo.db.writes++
	for i, a := range repo.db.attendance {
		if a.ClassID == att.ClassID && a.StudentID == att.StudentID {
			repo.db.attendance[i] = att
			return nil
		}
	}
	repo.db.attendance = append(repo.db.attendance, att)
	return nil
}

func (repo *gradeImportRepository) BumpClassVersion(_ context.Context, classID string) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	class, ok := repo.db.classes[classID]
	if !ok {
		return 0, gradeimport.ErrClassNotFound
	}
	class.Version++
	repo.db.writes++
	return class.Version, nil
}

func (repo *gradeImportRepository) ClaimClassVersion(_ context.Context, classID string, expected int64) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	class, ok := repo.db.classes[classID]
	if !ok {
		return 0, gradeimport.ErrClassNotFound
	}
	if class.Version != expected {
		return 0, gradeimport.ErrStaleImport
	}
	class.Version++
	repo.db.writes++
	return class.Version, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
