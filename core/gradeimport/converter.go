package gradeimport

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxNumericGrade      = 4.0
	defaultLetterNumeric = 2.0 // middle of the scale for unrecognized letters
	defaultLetterStatus  = StatusInProgress
)

var (
	placeholders = map[string]bool{"": true, "-": true, "unsubmitted": true, "n/a": true}

	statusLabels = map[int]string{
		StatusNotStarted: "Not Started",
		StatusInProgress: "In Progress",
		StatusCompleted:  "Completed",
		StatusExcellent:  "Excellent",
	}

	// free-text statuses projected on the 0-4 scale
	statusNumeric = map[int]float64{
		StatusNotStarted: 0,
		StatusInProgress: 2,
		StatusCompleted:  3,
		StatusExcellent:  4,
	}

	hundred = decimal.NewFromInt(100)
	four    = decimal.NewFromInt(4)
)

// StatusLabel is the display label of a progress status.
func StatusLabel(status int) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return "Unknown"
}

// IsPlaceholder reports whether raw stands for "no grade" ("", "-", "unsubmitted", "n/a").
func IsPlaceholder(raw string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(raw))]
}

// StatusThresholds are inclusive lower bounds on a 0-100 scale.
// Any value above NotStarted is at least in progress.
type StatusThresholds struct {
	Excellent  float64 `json:"excellent"`
	Completed  float64 `json:"completed"`
	InProgress float64 `json:"in_progress"`
	NotStarted float64 `json:"not_started"`
}

// StatusClassifier turns free text into a status. ok is false when the text was not recognized
// and status holds the classifier's fallback.
type StatusClassifier interface {
	Classify(text string) (status int, ok bool)
}

// ConversionConfig is the grade conversion policy of one import run.
type ConversionConfig struct {
	Thresholds    StatusThresholds
	LetterStatus  map[string]int     // first letter -> status
	LetterNumeric map[string]float64 // full letter grade (with +/-) -> 0-4
	Classifier    StatusClassifier
}

func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		Thresholds: StatusThresholds{Excellent: 90, Completed: 70, InProgress: 1, NotStarted: 0},
		LetterStatus: map[string]int{
			"A": StatusExcellent,
			"B": StatusCompleted,
			"C": StatusCompleted,
			"D": StatusInProgress,
			"F": StatusNotStarted,
		},
		LetterNumeric: map[string]float64{
			"A+": 4.0, "A": 4.0, "A-": 3.7,
			"B+": 3.3, "B": 3.0, "B-": 2.7,
			"C+": 2.3, "C": 2.0, "C-": 1.7,
			"D+": 1.3, "D": 1.0, "D-": 0.7,
			"F": 0,
		},
		Classifier: NewKeywordClassifier(DefaultKeywords),
	}
}

// Keywords lists the words recognized for each status.
type Keywords struct {
	Excellent  []string
	Completed  []string
	InProgress []string
	NotStarted []string
}

var DefaultKeywords = Keywords{
	Excellent:  []string{"excellent", "outstanding", "exceptional", "perfect"},
	Completed:  []string{"complete", "completed", "done", "submitted", "finished", "passed", "pass", "satisfactory"},
	InProgress: []string{"progress", "in progress", "partial", "partially", "incomplete", "pending", "started", "working"},
	NotStarted: []string{"missing", "not submitted", "not started", "absent", "none", "failed", "fail"},
}

type keywordRule struct {
	status int
	re     *regexp.Regexp
}

// KeywordClassifier matches whole words. Negative keywords are checked first so that
// "not submitted" never reads as "submitted".
type KeywordClassifier struct {
	rules    []keywordRule
	fallback int
}

var _ StatusClassifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier(kw Keywords) *KeywordClassifier {
	c := &KeywordClassifier{fallback: StatusInProgress}
	add := func(status int, words []string) {
		if re := keywordsRegex(words); re != nil {
			c.rules = append(c.rules, keywordRule{status: status, re: re})
		}
	}
	add(StatusNotStarted, kw.NotStarted)
	add(StatusExcellent, kw.Excellent)
	add(StatusInProgress, kw.InProgress)
	add(StatusCompleted, kw.Completed)
	return c
}

func keywordsRegex(words []string) *regexp.Regexp {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		parts := strings.FieldsFunc(w, func(r rune) bool { return r == ' ' || r == '-' })
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		alts = append(alts, strings.Join(parts, `[\s-]*`))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func (c *KeywordClassifier) Classify(text string) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "0" {
		return StatusNotStarted, true
	}
	for _, rule := range c.rules {
		if rule.re.MatchString(text) {
			return rule.status, true
		}
	}
	return c.fallback, false // effort was made
}

// Converter projects raw external values onto the internal status (0-3) and numeric (0-4) scales.
// It is a value: WithConfig returns a copy and never mutates the receiver.
type Converter struct {
	conf ConversionConfig
}

func NewConverter(conf ConversionConfig) Converter {
	def := DefaultConversionConfig()
	if conf.LetterStatus == nil {
		conf.LetterStatus = def.LetterStatus
	}
	if conf.LetterNumeric == nil {
		conf.LetterNumeric = def.LetterNumeric
	}
	if conf.Classifier == nil {
		conf.Classifier = def.Classifier
	}
	return Converter{conf: conf}
}

func (c Converter) Config() ConversionConfig { return c.conf }

func (c Converter) WithConfig(conf ConversionConfig) Converter { return NewConverter(conf) }

func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func normalizeLetter(raw string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	return strings.NewReplacer("−", "-", "–", "-").Replace(s)
}

func firstLetter(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// ToStatus converts raw into 0-3.
func (c Converter) ToStatus(raw string, gt GradingType) int {
	if IsPlaceholder(raw) {
		return StatusNotStarted
	}
	switch gt {
	case GradingPoints, GradingPercentage:
		v, ok := parseNumber(raw)
		if !ok {
			return StatusNotStarted
		}
		th := c.conf.Thresholds
		switch {
		case v >= th.Excellent:
			return StatusExcellent
		case v >= th.Completed:
			return StatusCompleted
		case v >= th.InProgress, v > th.NotStarted:
			return StatusInProgress
		default:
			return StatusNotStarted
		}
	case GradingLetter:
		if status, ok := c.conf.LetterStatus[firstLetter(normalizeLetter(raw))]; ok {
			return status
		}
		return defaultLetterStatus
	default:
		status, _ := c.conf.Classifier.Classify(raw)
		return status
	}
}

// ToNumeric converts raw into 0.0-4.0 with one decimal.
func (c Converter) ToNumeric(raw string, gt GradingType) float64 {
	if IsPlaceholder(raw) {
		return 0
	}
	switch gt {
	case GradingPoints, GradingPercentage:
		v, ok := parseNumber(raw)
		if !ok {
			return 0
		}
		d := decimal.NewFromFloat(v).Div(hundred).Mul(four).Round(1)
		if d.GreaterThan(four) {
			d = four
		} else if d.IsNegative() {
			d = decimal.Zero
		}
		f, _ := d.Float64()
		return f
	case GradingLetter:
		letter := normalizeLetter(raw)
		if v, ok := c.conf.LetterNumeric[letter]; ok {
			return v
		}
		if v, ok := c.conf.LetterNumeric[firstLetter(letter)]; ok {
			return v
		}
		return defaultLetterNumeric
	default:
		status, _ := c.conf.Classifier.Classify(raw)
		return statusNumeric[status]
	}
}

// NeedsReview reports a non-empty raw value that only converts through a fallback default.
func (c Converter) NeedsReview(raw string, gt GradingType) bool {
	if IsPlaceholder(raw) {
		return false
	}
	switch gt {
	case GradingPoints, GradingPercentage:
		_, ok := parseNumber(raw)
		return !ok
	case GradingLetter:
		letter := normalizeLetter(raw)
		if _, ok := c.conf.LetterNumeric[letter]; ok {
			return false
		}
		_, ok := c.conf.LetterNumeric[firstLetter(letter)]
		return !ok
	default:
		_, ok := c.conf.Classifier.Classify(raw)
		return !ok
	}
}
