// Package proxy pulls governance-relevant sections out of DEF 14A proxy
// statements under a fixed character budget.
package proxy

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultBudget is the excerpt size handed to governance extraction.
const DefaultBudget = 50_000

// Result tags used when no section split was performed.
const (
	TagFullText  = "full_text"
	TagTruncated = "truncated"
)

// Separator joins extracted sections.
const Separator = "\n\n---\n\n"

const (
	prosePeek     = 500 // chars after a heading inspected for prose
	minSentences  = 2   // '.' count that distinguishes prose from a ToC line
	minHitSpacing = 200
)

// Section is a target heading with its relative share of the budget.
type Section struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  float64
}

// Sections lists the proxy headings worth extracting.
var Sections = []Section{
	{"Compensation Discussion & Analysis", regexp.MustCompile(`(?i)Compensation\s+Discussion\s+and\s+Analysis`), 2.0},
	{"Summary Compensation Table", regexp.MustCompile(`(?i)(?:\d{4}\s+)?Summary\s+Compensation\s+Table`), 1.5},
	{"Pay Ratio", regexp.MustCompile(`(?i)(?:\d{4}\s+)?Pay\s+Ratio`), 1.0},
	{"Director Independence", regexp.MustCompile(`(?i)Director\s+Independence`), 1.0},
	{"Corporate Governance", regexp.MustCompile(`(?i)Corporate\s+Governance\b`), 1.0},
	{"Board Meetings and Committees", regexp.MustCompile(`(?i)Board\s+Meetings\s+and\s+Committees`), 1.0},
	{"Board Leadership Structure", regexp.MustCompile(`(?i)Board\s+Leadership\s+Structure`), 0.8},
	{"Executive Officers", regexp.MustCompile(`(?i)Executive\s+Officers\b`), 0.8},
	{"Director Compensation", regexp.MustCompile(`(?i)(?:Compensation\s+of\s+Directors|Director\s+Compensation)`), 1.0},
	{"Pay Versus Performance", regexp.MustCompile(`(?i)(?:\d{4}\s+)?Pay\s+(?:Versus|vs\.?)\s+Performance`), 1.5},
	{"Equity Compensation Plan", regexp.MustCompile(`(?i)Equity\s+Compensation\s+Plan`), 0.8},
	{"Board Risk Oversight", regexp.MustCompile(`(?i)Board\s+(?:Role\s+in\s+)?Risk\s+Oversight`), 0.8},
}

type hit struct {
	name   string
	weight float64
	pos    int
}

// Extract returns at most budget bytes of text. Short documents come back
// unchanged tagged TagFullText. Longer ones are reduced to the recognised
// sections in document order, each given a weight-proportional share of the
// budget; when no section is recognised the first budget bytes are returned
// tagged TagTruncated.
func Extract(text string, budget int) (string, []string) {
	if len(text) <= budget {
		return text, []string{TagFullText}
	}

	hits := locate(text)
	if len(hits) == 0 {
		return truncate(text, budget), []string{TagTruncated}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var totalWeight float64
	for _, h := range hits {
		totalWeight += h.weight
	}
	available := budget - len(Separator)*(len(hits)-1)

	var (
		parts []string
		found []string
		used  [][2]int
	)
	for i, h := range hits {
		alloc := int(float64(available) * h.weight / totalWeight)
		if i+1 < len(hits) {
			alloc = min(alloc, hits[i+1].pos-h.pos)
		}
		for _, r := range used {
			if h.pos < r[1] && h.pos+alloc > r[0] {
				alloc = min(alloc, r[0]-h.pos)
			}
		}
		if alloc <= 0 {
			continue
		}
		end := min(h.pos+alloc, len(text))
		parts = append(parts, strings.TrimSpace(strings.ToValidUTF8(text[h.pos:end], "")))
		used = append(used, [2]int{h.pos, h.pos + alloc})
		found = append(found, h.name)
	}

	if len(parts) == 0 {
		return truncate(text, budget), []string{TagTruncated}
	}
	return strings.Join(parts, Separator), found
}

// locate finds at most one heading position per section. Headings followed by
// too little prose (table of contents entries) or lying too close to an
// accepted heading are skipped.
func locate(text string) []hit {
	var hits []hit
	for _, s := range Sections {
		for _, m := range s.Pattern.FindAllStringIndex(text, -1) {
			peekEnd := min(m[1]+prosePeek, len(text))
			if strings.Count(text[m[1]:peekEnd], ".") < minSentences {
				continue
			}
			if nearAny(hits, m[0]) {
				continue
			}
			hits = append(hits, hit{name: s.Name, weight: s.Weight, pos: m[0]})
			break
		}
	}
	return hits
}

func nearAny(hits []hit, pos int) bool {
	for _, h := range hits {
		d := pos - h.pos
		if d < 0 {
			d = -d
		}
		if d < minHitSpacing {
			return true
		}
	}
	return false
}

// truncate cuts text to n bytes without splitting a UTF-8 sequence. A
// negative n is treated as zero.
func truncate(text string, n int) string {
	n = max(n, 0)
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
