package mediaprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFramerate_Fraction(t *testing.T) {
	assert.InDelta(t, 29.97, parseFramerate("30000/1001"), 0.01)
}

func TestParseFramerate_WholeRatio(t *testing.T) {
	assert.Equal(t, 25.0, parseFramerate("25/1"))
}

func TestParseFramerate_Bare(t *testing.T) {
	assert.Equal(t, 24.0, parseFramerate("24"))
}

func TestParseFramerate_ZeroDenominator(t *testing.T) {
	assert.Equal(t, 0.0, parseFramerate("30/0"))
}

func TestParseFramerate_Garbage(t *testing.T) {
	assert.Equal(t, 0.0, parseFramerate("not-a-rate"))
}

func TestParseDuration_Valid(t *testing.T) {
	d, err := parseDuration("123.456000")
	assert.NoError(t, err)
	assert.Equal(t, 123, d)
}

func TestParseDuration_Empty(t *testing.T) {
	_, err := parseDuration("")
	assert.Error(t, err)
}

func TestParseDuration_Invalid(t *testing.T) {
	_, err := parseDuration("not-a-number")
	assert.Error(t, err)
}
