package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

const (
	narrativeConfidence    = 0.85
	narrativeLabConfidence = 0.80
	observationConfidence  = 0.85
	trendOnlyConfidence    = 0.70
)

var (
	negationPattern = regexp.MustCompile(`(?i)\b(no|not|denies|denied|without|negative\s+for)\s+((?:(?:any|evidence\s+of|signs?\s+of|history\s+of|complaints?\s+of)\s+)*)([a-z][a-z0-9\-]*(?:\s+[a-z][a-z0-9\-]*){0,5})`)
	positivePattern = regexp.MustCompile(`(?i)\b(shows?|showed|showing|reveals?|revealed|demonstrates?|demonstrated|consistent\s+with|suggestive\s+of|evidence\s+of|indicative\s+of|confirms?|confirmed)\s+((?:(?:an?|the|mild|moderate|severe|early|some|signs\s+of)\s+)*)([a-z][a-z0-9\-]*(?:\s+[a-z][a-z0-9\-]*){0,5})`)

	improvedPattern = regexp.MustCompile(`(?i)\b(?:improv(?:ed|ing|ement)|better|resolv(?:ed|ing))\b`)
	worsenedPattern = regexp.MustCompile(`(?i)\b(?:worse(?:n(?:ed|ing))?|deteriorat(?:ed|ing|ion)|progress(?:ed|ing|ion))\b`)
	stablePattern   = regexp.MustCompile(`(?i)\b(?:stable|unchanged|steady)\b`)

	diagnosisLabel      = regexp.MustCompile(`(?i)^\s*(?:final\s+|provisional\s+|working\s+|clinical\s+)?(?:diagnos[ie]s|impression|assessment|dx)\s*[:\-]\s*(.*)$`)
	recommendationLabel = regexp.MustCompile(`(?i)^\s*(?:recommendations?|plan|advice|advised|follow[\s-]?up)\s*[:\-]\s*(.*)$`)
	anyLabel            = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z ()/]{1,30}:`)
	itemSeparator       = regexp.MustCompile(`;|\s+\d{1,2}[.)]\s+`)

	inlineLabPattern *regexp.Regexp
)

// phraseStops end a finding phrase.
var phraseStops = map[string]bool{
	"and": true, "or": true, "but": true, "with": true, "in": true, "on": true, "at": true,
	"was": true, "is": true, "are": true, "were": true, "seen": true, "noted": true, "today": true,
	"since": true, "for": true, "from": true, "to": true, "of": true, "the": true, "which": true,
}

func init() {
	var aliases []string
	for _, p := range medical.Parameters() {
		for _, a := range p.Aliases {
			if len(a) >= 3 {
				aliases = append(aliases, a)
			}
		}
	}
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	alts := make([]string, len(aliases))
	for i, a := range aliases {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(a), " ", `[\s\-]+`)
	}
	inlineLabPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(alts, "|") + `)\b(?:\s+(?:level|levels|value|count))?\s*(?:(?:was|is|of|at|=|:)\s*)*(` + numberExpr + `)\s*(` + unitExpr + `)?`)
}

// extractNarrative reads free-text clinical notes: polarity-tagged findings
// with trend words, labeled diagnoses and recommendations, and lab values
// that resolve against the catalog.
func extractNarrative(d *draft) {
	d.base = narrativeConfidence
	d.method = MethodNarrative

	covered := extractNarrativeLabs(d)
	for _, s := range splitSentences(d.text) {
		extractSentenceFindings(d, s, covered)
	}
	extractLabeledSections(d, observationConfidence)
}

// extractNarrativeLabs finds "Name: value unit" lines and inline mentions
// such as "HbA1c was 7.2%". It returns the spans it consumed.
func extractNarrativeLabs(d *draft) [][2]int {
	var covered [][2]int
	for _, line := range splitLines(d.text) {
		lv, start, end, ok := matchColonLab(line.text)
		if !ok || lv.ParameterID == "" {
			continue
		}
		d.addLab(lv, line.start+start, line.start+end, narrativeLabConfidence)
		covered = append(covered, [2]int{line.start + start, line.start + end})
	}

	for _, m := range inlineLabPattern.FindAllStringSubmatchIndex(d.text, -1) {
		if overlaps(covered, m[0], m[1]) {
			continue
		}
		unit, end := "", m[5]
		if m[6] >= 0 && looksLikeUnit(d.text[m[6]:m[7]]) {
			unit, end = d.text[m[6]:m[7]], m[7]
		}
		lv, ok := buildLab(d.text[m[2]:m[3]], d.text[m[4]:m[5]], unit, "")
		if !ok || lv.ParameterID == "" {
			continue
		}
		d.addLab(lv, m[0], end, narrativeLabConfidence)
		covered = append(covered, [2]int{m[0], end})
	}
	return covered
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// extractSentenceFindings tags negated and affirmed findings in one sentence
// and applies the sentence's trend word to them.
func extractSentenceFindings(d *draft, s lineSpan, covered [][2]int) {
	trend, label := sentenceTrend(s.text)
	first := len(d.candidates)

	var negated [][2]int
	for _, m := range negationPattern.FindAllStringSubmatchIndex(s.text, -1) {
		end := phraseEnd(s.text, m[6], m[7])
		if end <= m[6] {
			continue
		}
		start, stop := s.start+m[0], s.start+end
		if overlaps(covered, start, stop) {
			continue
		}
		f := d.addSpan(medical.FindingObservation, start, stop, observationConfidence, "absent: "+s.text[m[6]:end], "")
		f.Polarity = medical.PolarityNegated
		negated = append(negated, [2]int{start, stop})
	}

	for _, m := range positivePattern.FindAllStringSubmatchIndex(s.text, -1) {
		end := phraseEnd(s.text, m[6], m[7])
		if end <= m[6] {
			continue
		}
		start, stop := s.start+m[0], s.start+end
		if overlaps(negated, start, stop) || overlaps(covered, start, stop) {
			continue
		}
		d.addSpan(medical.FindingObservation, start, stop, observationConfidence, "present: "+s.text[m[6]:end], "")
	}

	if label == "" {
		return
	}
	if len(d.candidates) == first {
		start, end := trimmedBounds(d.text, s.start, s.start+len(s.text))
		if start < end && !overlaps(covered, start, end) {
			d.addSpan(medical.FindingObservation, start, end, trendOnlyConfidence, label+": "+d.text[start:end], "")
		}
	}
	for i := first; i < len(d.candidates); i++ {
		d.candidates[i].finding.Trend = trend
		d.candidates[i].finding.TrendLabel = label
	}
}

// phraseEnd cuts a captured phrase at the first stop word.
func phraseEnd(text string, start, end int) int {
	pos := start
	for _, word := range strings.Fields(text[start:end]) {
		idx := strings.Index(text[pos:end], word)
		if phraseStops[strings.ToLower(word)] {
			return trimRight(text, start, pos+idx)
		}
		pos += idx + len(word)
	}
	return pos
}

func trimRight(text string, start, end int) int {
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return end
}

func sentenceTrend(sentence string) (int, string) {
	switch {
	case worsenedPattern.MatchString(sentence):
		return -1, "worsened"
	case improvedPattern.MatchString(sentence):
		return 1, "improved"
	case stablePattern.MatchString(sentence):
		return 0, "stable"
	}
	return 0, ""
}

// splitSentences splits on newlines and on . ! ? followed by whitespace,
// so decimals stay intact.
func splitSentences(text string) []lineSpan {
	var out []lineSpan
	start := 0
	emit := func(end int) {
		if strings.TrimSpace(text[start:end]) != "" {
			out = append(out, lineSpan{text: text[start:end], start: start})
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			emit(i)
			start = i + 1
		case (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || isSpace(text[i+1])):
			emit(i + 1)
			start = i + 1
		}
	}
	if start < len(text) {
		emit(len(text))
	}
	return out
}

// extractLabeledSections reads "Diagnosis:"/"Impression:" and
// "Plan:"/"Advice:" blocks. A block runs from the label to a blank line or
// the next label; items are split on semicolons and list numbering.
func extractLabeledSections(d *draft, conf float64) {
	lines := splitLines(d.text)
	for _, item := range labeledItems(lines, diagnosisLabel) {
		d.data.Diagnoses = append(d.data.Diagnoses, d.text[item[0]:item[1]])
		d.addSpan(medical.FindingDiagnosis, item[0], item[1], conf, "diagnosis: "+d.text[item[0]:item[1]], "")
	}
	for _, item := range labeledItems(lines, recommendationLabel) {
		d.data.Recommendations = append(d.data.Recommendations, d.text[item[0]:item[1]])
		d.addSpan(medical.FindingObservation, item[0], item[1], conf, "recommendation: "+d.text[item[0]:item[1]], "")
	}
}

func labeledItems(lines []lineSpan, label *regexp.Regexp) [][2]int {
	var items [][2]int
	for i := 0; i < len(lines); i++ {
		m := label.FindStringSubmatchIndex(lines[i].text)
		if m == nil {
			continue
		}
		segments := []lineSpan{{text: lines[i].text[m[2]:m[3]], start: lines[i].start + m[2]}}
		for i+1 < len(lines) {
			next := lines[i+1]
			if strings.TrimSpace(next.text) == "" || anyLabel.MatchString(next.text) || medicationPattern.MatchString(next.text) {
				break
			}
			segments = append(segments, next)
			i++
		}
		for _, seg := range segments {
			items = append(items, splitItems(seg)...)
		}
	}
	return items
}

// splitItems splits a segment into items and returns their absolute spans
// with list markers and trailing punctuation removed.
func splitItems(seg lineSpan) [][2]int {
	var items [][2]int
	pos := 0
	bounds := itemSeparator.FindAllStringIndex(seg.text, -1)
	bounds = append(bounds, []int{len(seg.text), len(seg.text)})
	for _, b := range bounds {
		start, end := pos, b[0]
		pos = b[1]
		if loc := listMarker.FindStringIndex(seg.text[start:end]); loc != nil {
			start += loc[1]
		}
		start, end = trimmedBounds(seg.text, start, end)
		for end > start && strings.ContainsRune(".,", rune(seg.text[end-1])) {
			end--
		}
		if end > start {
			items = append(items, [2]int{seg.start + start, seg.start + end})
		}
	}
	return items
}
