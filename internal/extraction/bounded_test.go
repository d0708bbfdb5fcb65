package extraction

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildBoundedInput_WithinBudget(t *testing.T) {
	got, trunc := BuildBoundedInput("  Vendor: Acme\n\nTotal: $10  ", 5000)

	assert.Equal(t, "Vendor: Acme\n\nTotal: $10", got)
	assert.False(t, trunc.Truncated)
	assert.Equal(t, trunc.OriginalChars, trunc.FinalChars)
}

func TestBuildBoundedInput_KeywordSections(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	var paragraphs []string
	for range 60 {
		paragraphs = append(paragraphs, filler)
	}
	paragraphs[30] = "The supplier Globex Corporation agrees to the terms herein."
	paragraphs[31] = "Total contract value: USD 250,000 payable quarterly."
	text := strings.Join(paragraphs, "\n\n")

	got, trunc := BuildBoundedInput(text, 4000)

	assert.True(t, trunc.Truncated)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 4000)
	assert.Equal(t, utf8.RuneCountInString(got), trunc.FinalChars)
	assert.Equal(t, utf8.RuneCountInString(strings.TrimSpace(text)), trunc.OriginalChars)
	assert.Contains(t, got, TruncatedMarker)
	assert.Contains(t, got, EndMarker)
	assert.Contains(t, got, "supplier Globex Corporation")
	assert.Contains(t, got, "USD 250,000")
	assert.Less(t, strings.Index(got, "supplier Globex"), strings.Index(got, "USD 250,000"))
}

func TestBuildBoundedInput_NoKeywordsFallsBackToWindow(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 1000)

	got, trunc := BuildBoundedInput(text, 4000)

	assert.True(t, trunc.Truncated)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 4000)
	assert.Contains(t, got, TruncatedMarker)
}

func TestBuildBoundedInput_BudgetFloor(t *testing.T) {
	text := strings.Repeat("x", 3500)

	got, trunc := BuildBoundedInput(text, 100)

	assert.False(t, trunc.Truncated)
	assert.Equal(t, text, got)
}

func TestBuildBoundedInput_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("Vertrag über € 1.000 ", 600)

	got, _ := BuildBoundedInput(text, 4000)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 4000)
}

func TestSelectKeywordSections_CapsLongSections(t *testing.T) {
	long := "contract " + strings.Repeat("a", 3000)

	got := selectKeywordSections([]rune(long), 5000)

	assert.Equal(t, sectionCap, utf8.RuneCountInString(got))
}
