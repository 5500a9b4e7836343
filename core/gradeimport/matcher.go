package gradeimport

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/trezcool/contractgrading/core"
)

const (
	DefaultFuzzyThreshold = 80

	confidenceExact     = 100
	confidenceExactName = 95
)

// NormalizeName lowers, trims and collapses whitespace; "Last, First" becomes "first last".
func NormalizeName(name string) string {
	name = core.CollapseSpaces(name, true /* lower */)
	if i := strings.Index(name, ","); i >= 0 {
		last := strings.TrimSpace(name[:i])
		first := strings.TrimSpace(strings.ReplaceAll(name[i+1:], ",", " "))
		name = core.CollapseSpaces(first + " " + last)
	}
	return name
}

// Similarity is 100 × (1 − levenshtein(a,b) / max(len(a),len(b))), rounded.
func Similarity(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(maxLen))))
}

type rosterEntry struct {
	student  Student
	username string
	email    string
	name     string // normalized
}

// Matcher resolves external students against one immutable roster snapshot.
// It holds no mutable state and may be shared between goroutines.
type Matcher struct {
	roster         []rosterEntry
	fuzzyThreshold int
}

type MatcherOption func(*Matcher)

// WithFuzzyThreshold overrides the minimum similarity of a fuzzy_name match.
func WithFuzzyThreshold(threshold int) MatcherOption {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 100 {
			m.fuzzyThreshold = threshold
		}
	}
}

func NewMatcher(roster []Student, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		roster:         make([]rosterEntry, 0, len(roster)),
		fuzzyThreshold: DefaultFuzzyThreshold,
	}
	for _, st := range roster {
		m.roster = append(m.roster, rosterEntry{
			student:  st,
			username: core.CleanString(st.Username, true /* lower */),
			email:    core.CleanString(st.Email, true /* lower */),
			name:     NormalizeName(st.Name),
		})
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) result(s NormalizedStudent, entry *rosterEntry, mt MatchType, confidence int) StudentMatchResult {
	res := StudentMatchResult{CSVStudent: s, MatchType: mt, Confidence: confidence}
	if entry != nil {
		st := entry.student
		res.MatchedStudent = &st
	}
	return res
}

// Match runs the cascade (username, email, name, fuzzy name) and stops at the first hit.
func (m *Matcher) Match(s NormalizedStudent) StudentMatchResult {
	if uname := core.CleanString(s.Username, true /* lower */); uname != "" {
		for i := range m.roster {
			if m.roster[i].username == uname {
				return m.result(s, &m.roster[i], MatchExactUsername, confidenceExact)
			}
		}
	}

	if email := core.CleanString(s.Email, true /* lower */); email != "" {
		for i := range m.roster {
			// schools often reuse the email as username
			if m.roster[i].email == email || m.roster[i].username == email {
				return m.result(s, &m.roster[i], MatchExactEmail, confidenceExact)
			}
		}
	}

	name := NormalizeName(s.DisplayName)
	if name == "" {
		return m.result(s, nil, MatchNotFound, 0)
	}
	for i := range m.roster {
		if m.roster[i].name == name {
			return m.result(s, &m.roster[i], MatchExactName, confidenceExactName)
		}
	}

	best, bestScore := -1, 0
	for i := range m.roster {
		score := Similarity(name, m.roster[i].name)
		if score >= m.fuzzyThreshold && score > bestScore { // ties keep the first found
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return m.result(s, &m.roster[best], MatchFuzzyName, bestScore)
	}
	return m.result(s, nil, MatchNotFound, 0)
}

// MatchAll matches every student, preserving input order.
func (m *Matcher) MatchAll(students []NormalizedStudent) []StudentMatchResult {
	results := make([]StudentMatchResult, 0, len(students))
	for _, s := range students {
		results = append(results, m.Match(s))
	}
	return results
}
