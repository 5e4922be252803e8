package proxy

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filler = "Lorem ipsum dolor sit amet consectetur. "

func pad(n int) string {
	s := strings.Repeat(filler, n/len(filler)+1)
	return s[:n]
}

// document places each heading+prose fragment at the given offset and pads
// the remainder with neutral filler up to size.
func document(size int, at map[int]string) string {
	var b strings.Builder
	offsets := make([]int, 0, len(at))
	for off := range at {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	for _, off := range offsets {
		b.WriteString(pad(off - b.Len()))
		b.WriteString(at[off])
	}
	b.WriteString(pad(size - b.Len()))
	return b.String()
}

const prose = ". The board determined that nine of its ten directors are independent. " +
	"Each committee is composed entirely of independent directors. "

// ════════════════════════════════════════════════════════════════════
// Budget behaviour
// ════════════════════════════════════════════════════════════════════

func TestExtractShortTextUnchanged(t *testing.T) {
	text := "Director Independence" + prose
	out, tags := Extract(text, DefaultBudget)
	assert.Equal(t, text, out)
	assert.Equal(t, []string{TagFullText}, tags)
}

func TestExtractExactlyBudgetUnchanged(t *testing.T) {
	text := pad(1000)
	out, tags := Extract(text, 1000)
	assert.Equal(t, text, out)
	assert.Equal(t, []string{TagFullText}, tags)
}

func TestExtractNoHeadingsTruncates(t *testing.T) {
	text := pad(5000)
	out, tags := Extract(text, 1200)
	assert.Equal(t, text[:1200], out)
	assert.Equal(t, []string{TagTruncated}, tags)
}

func TestExtractNeverExceedsBudget(t *testing.T) {
	doc := document(200_000, map[int]string{
		1_000:   "Compensation Discussion and Analysis" + prose,
		20_000:  "Summary Compensation Table" + prose,
		41_000:  "Pay Ratio" + prose,
		60_000:  "Director Independence" + prose,
		90_000:  "Corporate Governance" + prose,
		130_000: "Board Leadership Structure" + prose,
		150_000: "Pay Versus Performance" + prose,
		199_000: "Board Risk Oversight" + prose,
	})
	for _, budget := range []int{500, 5_000, 20_000, 50_000, 150_000} {
		out, tags := Extract(doc, budget)
		assert.LessOrEqual(t, len(out), budget, "budget %d", budget)
		assert.NotEmpty(t, tags)
	}
}

// ════════════════════════════════════════════════════════════════════
// Section location
// ════════════════════════════════════════════════════════════════════

func TestExtractScenarioSingleHeadingDeepInDocument(t *testing.T) {
	doc := document(120_000, map[int]string{80_000: "Director Independence" + prose})
	require.Len(t, doc, 120_000)

	out, found := Extract(doc, 50_000)
	assert.Equal(t, []string{"Director Independence"}, found)
	assert.LessOrEqual(t, len(out), 50_000)
	assert.Contains(t, out, "nine of its ten directors are independent")
	assert.True(t, strings.HasPrefix(out, "Director Independence"))
}

func TestExtractSectionsInDocumentOrder(t *testing.T) {
	// Board Risk Oversight is scanned last but appears first.
	doc := document(100_000, map[int]string{
		2_000:  "Board Risk Oversight" + prose,
		40_000: "Compensation Discussion and Analysis" + prose,
		70_000: "Director Independence" + prose,
	})
	out, found := Extract(doc, 30_000)
	assert.Equal(t, []string{"Board Risk Oversight", "Compensation Discussion & Analysis", "Director Independence"}, found)
	assert.Equal(t, 2, strings.Count(out, Separator))
	assert.LessOrEqual(t, len(out), 30_000)
}

// tableOfContents is a heading followed by more than prosePeek bytes of
// page-numbered entries with no sentence terminators.
func tableOfContents() string {
	var b strings.Builder
	b.WriteString("Director Independence 14\n")
	entries := []string{"Proposal One Election of Directors", "Stock Ownership of Management", "Audit Matters", "Shareholder Proposals", "Other Business"}
	for i := 0; b.Len() < 2*prosePeek; i++ {
		fmt.Fprintf(&b, "%s %d\n", entries[i%len(entries)], 20+i)
	}
	return b.String()
}

func TestExtractSkipsTableOfContents(t *testing.T) {
	toc := tableOfContents()
	require.NotContains(t, toc[:prosePeek+len("Director Independence")], ".")

	doc := document(100_000, map[int]string{
		0:      toc,
		50_000: "Director Independence" + prose,
	})
	out, found := Extract(doc, 10_000)
	assert.Equal(t, []string{"Director Independence"}, found)
	assert.True(t, strings.HasPrefix(out, "Director Independence."), "section must start at the prose heading, got %.60q", out)
	assert.Contains(t, out, "nine of its ten directors")
	assert.NotContains(t, out, "Stock Ownership of Management")

	hits := locate(doc)
	require.Len(t, hits, 1)
	assert.Equal(t, 50_000, hits[0].pos)
}

func TestExtractRejectsNearbyHeadings(t *testing.T) {
	// "Executive Officers" sits inside the Compensation heading's neighbourhood.
	doc := document(100_000, map[int]string{
		10_000: "Compensation Discussion and Analysis for Executive Officers" + prose,
	})
	_, found := Extract(doc, 10_000)
	assert.Equal(t, []string{"Compensation Discussion & Analysis"}, found)
}

func TestExtractAllocationClampedToNextSection(t *testing.T) {
	doc := document(100_000, map[int]string{
		10_000: "Director Independence" + prose,
		10_600: "Pay Ratio" + prose,
	})
	out, found := Extract(doc, 40_000)
	require.Equal(t, []string{"Director Independence", "Pay Ratio"}, found)
	first := strings.Split(out, Separator)[0]
	assert.LessOrEqual(t, len(first), 600)
	assert.NotContains(t, first, "Pay Ratio")
}

func TestExtractCaseInsensitive(t *testing.T) {
	doc := document(60_000, map[int]string{30_000: "DIRECTOR INDEPENDENCE" + prose})
	_, found := Extract(doc, 10_000)
	assert.Equal(t, []string{"Director Independence"}, found)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := "ab€cd" // € is 3 bytes
	assert.Equal(t, "ab", truncate(s, 3))
	assert.Equal(t, "ab€", truncate(s, 5))
}

func TestExtractNonPositiveBudget(t *testing.T) {
	doc := document(5_000, map[int]string{1_000: "Director Independence" + prose})
	for _, budget := range []int{0, -1, -500} {
		out, tags := Extract(doc, budget)
		assert.Empty(t, out, "budget %d", budget)
		assert.Equal(t, []string{TagTruncated}, tags, "budget %d", budget)
	}
	assert.Equal(t, "", truncate("abc", -1))
}
