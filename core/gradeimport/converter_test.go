package gradeimport

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConverter_ToStatus(t *testing.T) {
	c := NewConverter(DefaultConversionConfig())

	tests := []struct {
		name string
		raw  string
		gt   GradingType
		want int
	}{
		{"empty", "", GradingPercentage, StatusNotStarted},
		{"dash", "-", GradingPoints, StatusNotStarted},
		{"placeholder any case", "N/A", GradingStatus, StatusNotStarted},
		{"unsubmitted", "Unsubmitted", GradingLetter, StatusNotStarted},
		{"excellent threshold", "90", GradingPercentage, StatusExcellent},
		{"above excellent", "95.5", GradingPoints, StatusExcellent},
		{"completed threshold", "70", GradingPercentage, StatusCompleted},
		{"percent sign", "85%", GradingPercentage, StatusCompleted},
		{"in progress", "50", GradingPoints, StatusInProgress},
		{"any positive value", "0.5", GradingPoints, StatusInProgress},
		{"zero", "0", GradingPoints, StatusNotStarted},
		{"negative", "-5", GradingPoints, StatusNotStarted},
		{"unparsable number", "abc", GradingPoints, StatusNotStarted},
		{"letter A", "A", GradingLetter, StatusExcellent},
		{"letter with modifier", "b+", GradingLetter, StatusCompleted},
		{"letter C-", "C-", GradingLetter, StatusCompleted},
		{"letter D", "D", GradingLetter, StatusInProgress},
		{"letter F", "F", GradingLetter, StatusNotStarted},
		{"unknown letter", "Z", GradingLetter, StatusInProgress},
		{"excellent keyword", "Excellent work", GradingStatus, StatusExcellent},
		{"completed keyword", "Completed", GradingStatus, StatusCompleted},
		{"submitted", "Submitted", GradingStatus, StatusCompleted},
		{"not submitted", "not submitted", GradingStatus, StatusNotStarted},
		{"not started hyphen", "Not-Started", GradingStatus, StatusNotStarted},
		{"in progress keyword", "In Progress", GradingStatus, StatusInProgress},
		{"incomplete", "Incomplete", GradingStatus, StatusInProgress},
		{"missing", "Missing", GradingStatus, StatusNotStarted},
		{"failed", "failed", GradingStatus, StatusNotStarted},
		{"zero text", "0", GradingStatus, StatusNotStarted},
		{"unrecognized text", "see comments", GradingStatus, StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ToStatus(tt.raw, tt.gt))
		})
	}
}

func TestConverter_ToNumeric(t *testing.T) {
	c := NewConverter(DefaultConversionConfig())

	tests := []struct {
		name string
		raw  string
		gt   GradingType
		want float64
	}{
		{"placeholder", "n/a", GradingPoints, 0},
		{"points", "88", GradingPoints, 3.5},
		{"full marks", "100", GradingPercentage, 4},
		{"extra credit is capped", "120", GradingPercentage, 4},
		{"half", "50", GradingPercentage, 2},
		{"percent sign", "75%", GradingPercentage, 3},
		{"negative", "-10", GradingPoints, 0},
		{"unparsable", "abc", GradingPoints, 0},
		{"letter A-", "A-", GradingLetter, 3.7},
		{"letter B", "B", GradingLetter, 3.0},
		{"letter with spaces", "b +", GradingLetter, 3.3},
		{"unicode minus", "C−", GradingLetter, 1.7},
		{"first letter fallback", "A++", GradingLetter, 4.0},
		{"unknown letter", "Z", GradingLetter, 2.0},
		{"letter F", "F", GradingLetter, 0},
		{"excellent", "Excellent", GradingStatus, 4},
		{"done", "done", GradingStatus, 3},
		{"in progress", "in progress", GradingStatus, 2},
		{"missing", "Missing", GradingStatus, 0},
		{"unrecognized", "???", GradingStatus, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ToNumeric(tt.raw, tt.gt))
		})
	}
}

func TestConverter_ranges(t *testing.T) {
	c := NewConverter(DefaultConversionConfig())

	prevStatus, prevNumeric := -1, -1.0
	for v := -20.0; v <= 150; v += 0.5 {
		raw := strconv.FormatFloat(v, 'f', -1, 64)
		status := c.ToStatus(raw, GradingPercentage)
		numeric := c.ToNumeric(raw, GradingPercentage)

		assert.True(t, status >= StatusNotStarted && status <= StatusExcellent, raw)
		assert.True(t, numeric >= 0 && numeric <= 4, raw)
		assert.GreaterOrEqual(t, status, prevStatus, "status must not decrease (%s)", raw)
		assert.GreaterOrEqual(t, numeric, prevNumeric, "numeric must not decrease (%s)", raw)
		prevStatus, prevNumeric = status, numeric
	}

	for _, raw := range []string{"", "A", "Q", "done", "whatever", "1e400", "NaN"} {
		for _, gt := range GradingTypes {
			status := c.ToStatus(raw, gt)
			numeric := c.ToNumeric(raw, gt)
			assert.True(t, status >= StatusNotStarted && status <= StatusExcellent, raw)
			assert.True(t, numeric >= 0 && numeric <= 4, raw)
		}
	}
}

func TestConverter_NeedsReview(t *testing.T) {
	c := NewConverter(DefaultConversionConfig())

	tests := []struct {
		raw  string
		gt   GradingType
		want bool
	}{
		{"88", GradingPoints, false},
		{"abc", GradingPercentage, true},
		{"A+", GradingLetter, false},
		{"A++", GradingLetter, false},
		{"Z", GradingLetter, true},
		{"done", GradingStatus, false},
		{"???", GradingStatus, true},
		{"", GradingStatus, false},
		{"-", GradingLetter, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.gt)+"/"+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, c.NeedsReview(tt.raw, tt.gt))
		})
	}
}

func TestConverter_WithConfig(t *testing.T) {
	c := NewConverter(DefaultConversionConfig())

	conf := DefaultConversionConfig()
	conf.Thresholds.Excellent = 80
	strict := c.WithConfig(conf)

	assert.Equal(t, StatusExcellent, strict.ToStatus("85", GradingPercentage))
	assert.Equal(t, StatusCompleted, c.ToStatus("85", GradingPercentage), "the receiver must not change")
	assert.Equal(t, 80.0, strict.Config().Thresholds.Excellent)

	// nil policy parts fall back to the defaults
	partial := NewConverter(ConversionConfig{Thresholds: conf.Thresholds})
	assert.Equal(t, 3.7, partial.ToNumeric("A-", GradingLetter))
	assert.Equal(t, StatusCompleted, partial.ToStatus("done", GradingStatus))
}

func TestKeywordClassifier_custom(t *testing.T) {
	c := NewKeywordClassifier(Keywords{Completed: []string{"fertig"}, NotStarted: []string{"fehlt"}})

	status, ok := c.Classify("Fertig")
	assert.True(t, ok)
	assert.Equal(t, StatusCompleted, status)

	status, ok = c.Classify("fehlt")
	assert.True(t, ok)
	assert.Equal(t, StatusNotStarted, status)

	status, ok = c.Classify("done")
	assert.False(t, ok)
	assert.Equal(t, StatusInProgress, status)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Not Started", StatusLabel(0))
	assert.Equal(t, "In Progress", StatusLabel(1))
	assert.Equal(t, "Completed", StatusLabel(2))
	assert.Equal(t, "Excellent", StatusLabel(3))
	assert.Equal(t, "Unknown", StatusLabel(7))
	assert.Equal(t, "Unknown", StatusLabel(-1))
}
