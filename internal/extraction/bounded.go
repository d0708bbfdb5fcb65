package extraction

import (
	"regexp"
	"strings"
)

// MinInputChars is the smallest budget BuildBoundedInput honours.
const MinInputChars = 4000

// Markers framing the keyword-selected middle of a truncated document.
const (
	TruncatedMarker = "[...TRUNCATED FOR TOKEN LIMIT...]"
	EndMarker       = "[...END TRUNCATED SECTION...]"
)

const (
	headShare        = 0.35
	tailShare        = 0.20
	middleFloorShare = 0.20
	separatorReserve = 128
	sectionCap       = 1200
	sectionSep       = "\n\n"
)

var (
	keywordRe   = regexp.MustCompile(`(?i)\b(vendor|supplier|agreement|contract|effective|start|end|term|expires|amount|value|total|usd|date|dated)\b|\$`)
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
)

// Truncation describes what BuildBoundedInput did to a text.
type Truncation struct {
	Truncated     bool
	OriginalChars int
	FinalChars    int
}

// BuildBoundedInput shortens text to at most budget characters.
//
// Text within budget is returned trimmed. Longer text keeps its head and
// tail and, between two markers, the paragraphs that mention contract terms
// such as vendor, dates or amounts. Lengths are counted in runes.
func BuildBoundedInput(text string, budget int) (string, Truncation) {
	budget = max(budget, MinInputChars)
	normalized := []rune(strings.TrimSpace(text))
	n := len(normalized)
	if n <= budget {
		return string(normalized), Truncation{OriginalChars: n, FinalChars: n}
	}

	headBudget := int(float64(budget) * headShare)
	tailBudget := int(float64(budget) * tailShare)
	middleBudget := max(budget-headBudget-tailBudget-separatorReserve, int(float64(budget)*middleFloorShare))

	var b strings.Builder
	b.WriteString(string(normalized[:headBudget]))
	b.WriteString(sectionSep + TruncatedMarker + sectionSep)
	b.WriteString(selectKeywordSections(normalized, middleBudget))
	b.WriteString(sectionSep + EndMarker + sectionSep)
	b.WriteString(string(normalized[n-tailBudget:]))

	bounded := []rune(b.String())
	if len(bounded) > budget {
		bounded = bounded[:budget]
	}

	return string(bounded), Truncation{
		Truncated:     true,
		OriginalChars: n,
		FinalChars:    len(bounded),
	}
}

// selectKeywordSections keeps keyword-bearing paragraphs in document order
// until budget is spent. Without any match it returns the centred window.
func selectKeywordSections(text []rune, budget int) string {
	var chosen []string
	used := 0

	for _, section := range paragraphRe.Split(string(text), -1) {
		chunk := strings.TrimSpace(section)
		if chunk == "" || !keywordRe.MatchString(chunk) {
			continue
		}
		runes := []rune(chunk)
		if len(runes) > sectionCap {
			runes = runes[:sectionCap]
		}
		if used+len(runes)+len(sectionSep) > budget {
			break
		}
		chosen = append(chosen, string(runes))
		used += len(runes) + len(sectionSep)
	}

	if len(chosen) > 0 {
		return strings.Join(chosen, sectionSep)
	}

	start := max(len(text)/2-budget/2, 0)
	end := min(start+budget, len(text))
	return string(text[start:end])
}
