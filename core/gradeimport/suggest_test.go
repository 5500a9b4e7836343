package gradeimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanColumnName(t *testing.T) {
	assert.Equal(t, "Essay 1", CleanColumnName("Essay 1 (1234)"))
	assert.Equal(t, "Essay 1", CleanColumnName("  Essay   1  "))
	assert.Equal(t, "Lab (draft)", CleanColumnName("Lab (draft)"))
}

func TestSuggestMappings(t *testing.T) {
	assignments := []Assignment{
		{ID: "a1", Name: "Essay 1", ScoringType: ScoringNumeric},
		{ID: "a2", Name: "Lab Report", ScoringType: ScoringStatus},
		{ID: "a3", Name: "Quiz 1", ScoringType: ScoringNumeric},
	}
	columns := []string{"Essay 1 (1234)", "lab report", "Absences", "Participation", "Quiz 1 - Cells", "Essay 1 Draft"}

	got := SuggestMappings(columns, assignments, 0)
	assert.Equal(t, []AssignmentMapping{
		{Column: "Essay 1 (1234)", Target: TargetAssignment, AssignmentID: "a1", GradingType: GradingPercentage},
		{Column: "lab report", Target: TargetAssignment, AssignmentID: "a2", GradingType: GradingStatus},
		{Column: "Absences", Target: TargetAbsences},
		{Column: "Participation", Target: TargetSkip},
		{Column: "Quiz 1 - Cells", Target: TargetAssignment, AssignmentID: "a3", GradingType: GradingPercentage},
		{Column: "Essay 1 Draft", Target: TargetSkip}, // a1 is already taken
	}, got)
}

func TestSuggestMappings_minScore(t *testing.T) {
	assignments := []Assignment{{ID: "a1", Name: "Essay 1", ScoringType: ScoringNumeric}}

	got := SuggestMappings([]string{"Essay One"}, assignments, 0.99)
	assert.Equal(t, TargetSkip, got[0].Target)

	got = SuggestMappings([]string{"Essay 1"}, assignments, 0.99)
	assert.Equal(t, TargetAssignment, got[0].Target)
}
