package testutil

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
	logsvc "github.com/trezcool/contractgrading/services/logger"
)

// Seeder is the in-memory repository, with its seeding helpers.
type Seeder interface {
	gradeimport.Repository

	CreateClass(name string) gradeimport.Class
	CreateStudent(st gradeimport.Student, classIDs ...string) gradeimport.Student
	CreateAssignment(a gradeimport.Assignment) gradeimport.Assignment
	SetUpdateProgressHook(fn func(upd gradeimport.ProgressUpdate) error)
}

func NewConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	return conf
}

// NewLogger discards every entry; the hook keeps them for assertions.
func NewLogger(conf *core.Config) (*logsvc.RollbarLogger, *test.Hook) {
	std, hook := test.NewNullLogger()
	std.SetLevel(logrus.DebugLevel)
	logger := logsvc.NewRollbarLogger(std.WithField("component", "test"), conf)
	logger.Enable(false)
	return logger, hook
}

// Class is a seeded class with its roster and assignments, in creation order.
type Class struct {
	gradeimport.Class
	Students    []gradeimport.Student
	Assignments []gradeimport.Assignment
}

// Student returns the seeded student called name.
func (c Class) Student(t *testing.T, name string) gradeimport.Student {
	t.Helper()
	for _, st := range c.Students {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("student %q not seeded", name)
	return gradeimport.Student{}
}

// Assignment returns the seeded assignment called name.
func (c Class) Assignment(t *testing.T, name string) gradeimport.Assignment {
	t.Helper()
	for _, a := range c.Assignments {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("assignment %q not seeded", name)
	return gradeimport.Assignment{}
}

// SeedClass creates "Biology 101" with four students and three assignments:
// "Essay 1" and "Quiz 1" are numeric, "Lab Report" is status scored.
func SeedClass(t *testing.T, repo Seeder) Class {
	t.Helper()
	c := Class{Class: repo.CreateClass("Biology 101")}

	for _, st := range []gradeimport.Student{
		{Name: "Jane Doe", Email: "jane.doe@school.edu", Username: "jdoe"},
		{Name: "John Smith", Email: "john.smith@school.edu", Username: "jsmith"},
		{Name: "María García", Email: "maria.garcia@school.edu", Username: "mgarcia"},
		{Name: "Robert Brown", Email: "rbrown@school.edu", Username: "rbrown", SISID: "S-1004"},
	} {
		c.Students = append(c.Students, repo.CreateStudent(st, c.ID))
	}

	for i, a := range []gradeimport.Assignment{
		{Name: "Essay 1", ScoringType: gradeimport.ScoringNumeric},
		{Name: "Lab Report", ScoringType: gradeimport.ScoringStatus},
		{Name: "Quiz 1", ScoringType: gradeimport.ScoringNumeric},
	} {
		a.ClassID = c.ID
		a.Position = i
		c.Assignments = append(c.Assignments, repo.CreateAssignment(a))
	}
	return c
}
