package gradeimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roster = []Student{
	{ID: "s1", Name: "Jane Doe", Email: "jane.doe@school.edu", Username: "jdoe"},
	{ID: "s2", Name: "John Smith", Email: "john.smith@school.edu", Username: "jsmith"},
	{ID: "s3", Name: "Robert Brown", Email: "rbrown@school.edu", Username: "rbrown@school.edu"},
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Jane Doe", "jane doe"},
		{"  JANE   DOE ", "jane doe"},
		{"Doe, Jane", "jane doe"},
		{"Doe ,  Jane", "jane doe"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "jane", 0},
		{"jane", "", 0},
		{"jane doe", "jane doe", 100},
		{"kitten", "sitting", 57},
		{"jane do", "jane doe", 88},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Similarity(tt.b, tt.a), "must be symmetric")
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher(roster)

	tests := []struct {
		name           string
		student        NormalizedStudent
		wantID         string
		wantType       MatchType
		wantConfidence int
	}{
		{
			name:           "username wins over a conflicting name",
			student:        NormalizedStudent{DisplayName: "John Smith", Username: " JDOE "},
			wantID:         "s1",
			wantType:       MatchExactUsername,
			wantConfidence: 100,
		},
		{
			name:           "email",
			student:        NormalizedStudent{DisplayName: "J. Smith", Username: "nobody", Email: "John.Smith@school.edu"},
			wantID:         "s2",
			wantType:       MatchExactEmail,
			wantConfidence: 100,
		},
		{
			name:           "email used as username",
			student:        NormalizedStudent{DisplayName: "Bob", Email: "rbrown@school.edu"},
			wantID:         "s3",
			wantType:       MatchExactEmail,
			wantConfidence: 100,
		},
		{
			name:           "last, first name",
			student:        NormalizedStudent{DisplayName: "Smith, John"},
			wantID:         "s2",
			wantType:       MatchExactName,
			wantConfidence: 95,
		},
		{
			name:           "fuzzy name",
			student:        NormalizedStudent{DisplayName: "Jane Do"},
			wantID:         "s1",
			wantType:       MatchFuzzyName,
			wantConfidence: 88,
		},
		{
			name:     "not found",
			student:  NormalizedStudent{DisplayName: "Completely Different"},
			wantType: MatchNotFound,
		},
		{
			name:     "no name nor identifiers",
			student:  NormalizedStudent{},
			wantType: MatchNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.student)
			assert.Equal(t, tt.wantType, res.MatchType)
			assert.Equal(t, tt.wantConfidence, res.Confidence)
			assert.Equal(t, tt.student, res.CSVStudent)
			if tt.wantID == "" {
				assert.Nil(t, res.MatchedStudent)
				return
			}
			require.NotNil(t, res.MatchedStudent)
			assert.Equal(t, tt.wantID, res.MatchedStudent.ID)
		})
	}
}

func TestMatcher_fuzzyThreshold(t *testing.T) {
	res := NewMatcher(roster, WithFuzzyThreshold(90)).Match(NormalizedStudent{DisplayName: "Jane Do"})
	assert.Equal(t, MatchNotFound, res.MatchType)

	// out of range values keep the default
	res = NewMatcher(roster, WithFuzzyThreshold(0)).Match(NormalizedStudent{DisplayName: "Jane Do"})
	assert.Equal(t, MatchFuzzyName, res.MatchType)
}

func TestMatcher_fuzzyTieKeepsFirst(t *testing.T) {
	m := NewMatcher([]Student{
		{ID: "a", Name: "Jon Smith"},
		{ID: "b", Name: "Jan Smith"},
	})
	res := m.Match(NormalizedStudent{DisplayName: "Jen Smith"})
	require.NotNil(t, res.MatchedStudent)
	assert.Equal(t, "a", res.MatchedStudent.ID)
	assert.Equal(t, MatchFuzzyName, res.MatchType)
}

func TestMatcher_MatchAll(t *testing.T) {
	m := NewMatcher(roster)
	students := []NormalizedStudent{
		{SourceID: "2", DisplayName: "Nobody Here"},
		{SourceID: "3", DisplayName: "Doe, Jane"},
	}
	results := m.MatchAll(students)
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].CSVStudent.SourceID)
	assert.Equal(t, MatchNotFound, results[0].MatchType)
	assert.Equal(t, "3", results[1].CSVStudent.SourceID)

	// results hold copies of the roster
	results[1].MatchedStudent.Name = "changed"
	assert.Equal(t, MatchExactName, m.Match(students[1]).MatchType)
	assert.Equal(t, "Jane Doe", roster[0].Name)
}
