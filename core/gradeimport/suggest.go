package gradeimport

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/contractgrading/core"
)

const (
	DefaultSuggestMinScore = 0.6
	containmentBonus       = 0.2
)

var (
	canvasIDSuffix = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	absenceColumns = map[string]bool{"absences": true, "absence": true, "absent": true, "days absent": true}
)

// CleanColumnName drops the "(12345)" assignment id suffix Canvas appends to headers.
func CleanColumnName(col string) string {
	return core.CollapseSpaces(canvasIDSuffix.ReplaceAllString(col, ""))
}

func nameSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	score := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
	if fuzzy.MatchNormalizedFold(a, b) || fuzzy.MatchNormalizedFold(b, a) {
		score += containmentBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// GradingTypeFor is the grading type a column bound to `a` most likely uses.
func GradingTypeFor(a Assignment) GradingType {
	if a.ScoringType == ScoringStatus {
		return GradingStatus
	}
	return GradingPercentage
}

// SuggestMappings proposes one mapping per column, in column order. Each assignment is suggested at
// most once; columns scoring below minScore against every remaining assignment are skipped.
func SuggestMappings(columns []string, assignments []Assignment, minScore float64) []AssignmentMapping {
	if minScore <= 0 {
		minScore = DefaultSuggestMinScore
	}
	used := make(map[string]bool, len(assignments))
	mappings := make([]AssignmentMapping, 0, len(columns))

	for _, col := range columns {
		cleaned := CleanColumnName(col)
		if absenceColumns[strings.ToLower(cleaned)] {
			mappings = append(mappings, AssignmentMapping{Column: col, Target: TargetAbsences})
			continue
		}

		best, bestScore := -1, 0.0
		for i, a := range assignments {
			if used[a.ID] {
				continue
			}
			if score := nameSimilarity(cleaned, core.CollapseSpaces(a.Name)); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 || bestScore < minScore {
			mappings = append(mappings, AssignmentMapping{Column: col, Target: TargetSkip})
			continue
		}

		a := assignments[best]
		used[a.ID] = true
		mappings = append(mappings, AssignmentMapping{
			Column:       col,
			Target:       TargetAssignment,
			AssignmentID: a.ID,
			GradingType:  GradingTypeFor(a),
		})
	}
	return mappings
}
