package redaction

import "sort"

// span is one candidate replacement a layer found before the
// overlap-dedup and right-to-left substitution pass.
type span struct {
	start, end  int
	replacement string
	confidence  float64
	kind        string
}

// applySpans enforces spec §4.5's replacement discipline: collect all
// match spans, sort descending by start offset, replace from the end so
// earlier offsets stay valid, and drop overlapping spans in favor of
// the highest-confidence one.
func applySpans(text string, spans []span, layer string) (string, []Finding) {
	spans = dedupeOverlaps(spans)

	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	out := text
	findings := make([]Finding, 0, len(spans))
	for _, s := range spans {
		out = out[:s.start] + s.replacement + out[s.end:]
	}
	// Findings are reported in left-to-right order with their original
	// (pre-replacement) offsets, regardless of the replacement pass order.
	ordered := append([]span(nil), spans...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].start < ordered[j].start })
	for _, s := range ordered {
		findings = append(findings, Finding{Layer: layer, Kind: s.kind, Start: s.start, End: s.end, Confidence: s.confidence})
	}
	return out, findings
}

// dedupeOverlaps keeps, among spans whose ranges intersect, only the
// one with the highest confidence (spec §4.5, "Overlapping matches
// within a layer are deduplicated by keeping the highest-confidence
// span").
func dedupeOverlaps(spans []span) []span {
	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	var out []span
	for _, s := range sorted {
		overlapped := false
		for i := range out {
			if s.start < out[i].end && out[i].start < s.end {
				overlapped = true
				if s.confidence > out[i].confidence {
					out[i] = s
				}
				break
			}
		}
		if !overlapped {
			out = append(out, s)
		}
	}
	return out
}
