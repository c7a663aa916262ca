package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchOption_Exact(t *testing.T) {
	assert.True(t, MatchOption("Temperatures", "Temperatures"))
	assert.True(t, MatchOption("temperatures", "TEMPERATURES"))
	assert.True(t, MatchOption(" Noise ", "noise"))
}

func TestMatchOption_Aliases(t *testing.T) {
	assert.True(t, MatchOption("Temperatures", "Thermals"))
	assert.True(t, MatchOption("Thermals", "Temperatures"))
	assert.True(t, MatchOption("Overclocking", "OC"))
	assert.True(t, MatchOption("Noise", "Fan Noise"))
	assert.True(t, MatchOption("Value", "Value & Conclusion"))
}

func TestMatchOption_SubstringEitherDirection(t *testing.T) {
	assert.True(t, MatchOption("Power", "Power Consumption Details"))
	assert.True(t, MatchOption("Gaming Performance Summary", "Performance"))
}

func TestMatchOption_Negative(t *testing.T) {
	assert.False(t, MatchOption("Temperatures", "Packaging"))
	assert.False(t, MatchOption("", "Temperatures"))
	assert.False(t, MatchOption("Temperatures", ""))
	assert.False(t, MatchOption("Noise", "Overclocking"))
}
