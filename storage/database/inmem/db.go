package inmemdb

import (
	"sync"

	"github.com/trezcool/contractgrading/core/gradeimport"
)

type (
	// DB is a process-local store for tests and demos. Tables keep insertion order.
	DB struct {
		mu sync.RWMutex

		classes     map[string]*gradeimport.Class
		students    map[string]gradeimport.Student
		enrollments map[string][]string // {class ID: student IDs}
		assignments []gradeimport.Assignment
		progress    []gradeimport.Progress
		attendance  []gradeimport.Attendance

		writes int
	}
)

func Open() *DB {
	return &DB{
		classes:     make(map[string]*gradeimport.Class),
		students:    make(map[string]gradeimport.Student),
		enrollments: make(map[string][]string),
	}
}

// Writes counts the mutations applied through a repository.
func (db *DB) Writes() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writes
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.classes = make(map[string]*gradeimport.Class)
	db.students = make(map[string]gradeimport.Student)
	db.enrollments = make(map[string][]string)
	db.assignments = nil
	db.progress = nil
	db.attendance = nil
	db.writes = 0
}
