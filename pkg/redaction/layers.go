package redaction

import (
	"net/url"
	"regexp"
	"strings"
)

// secretLayer is order-100: known token shapes plus high-entropy runs
// (spec §4.5 layer 100).
type secretLayer struct{}

func (secretLayer) Order() int  { return 100 }
func (secretLayer) Name() string { return "secret_detection" }

var (
	awsKeyPattern   = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	bearerPattern   = regexp.MustCompile(`\bBearer\s+[A-Za-z0-9\-_.=]{10,}\b`)
	jwtPattern      = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)
	pemBlockPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)
	urlSafeRun      = regexp.MustCompile(`[A-Za-z0-9_-]{20,}`)
)

func (secretLayer) process(input string, _ Context) (layerOutput, error) {
	var spans []span

	for _, m := range awsKeyPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:aws_key]", confidence: 0.95, kind: "secret"})
	}
	for _, m := range bearerPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:bearer_token]", confidence: 0.9, kind: "secret"})
	}
	for _, m := range jwtPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:jwt]", confidence: 0.9, kind: "secret"})
	}
	for _, m := range pemBlockPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:private_key]", confidence: 0.98, kind: "secret"})
	}
	for _, m := range urlSafeRun.FindAllStringIndex(input, -1) {
		run := input[m[0]:m[1]]
		if shannonEntropy(run) > 4.5 {
			spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:high_entropy]", confidence: 0.6, kind: "secret"})
		}
	}

	out, findings := applySpans(input, spans, secretLayer{}.Name())
	return layerOutput{output: out, findings: findings}, nil
}

// piiLayer is order-200: email, SSN, phone, Luhn-validated card numbers,
// and IP addresses (spec §4.5 layer 200).
type piiLayer struct{}

func (piiLayer) Order() int  { return 200 }
func (piiLayer) Name() string { return "pii_detection" }

var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern      = regexp.MustCompile(`\b\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	cardCandidate     = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	ipv4Pattern       = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)
	ipv6Pattern       = regexp.MustCompile(`\b(?:[A-Fa-f0-9]{1,4}:){7}[A-Fa-f0-9]{1,4}\b`)
	nonDigitSeparator = regexp.MustCompile(`[ -]`)
)

func (piiLayer) process(input string, _ Context) (layerOutput, error) {
	var spans []span

	for _, m := range emailPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:email]", confidence: 0.9, kind: "pii_email"})
	}
	for _, m := range ssnPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:ssn]", confidence: 0.85, kind: "pii_ssn"})
	}
	for _, m := range cardCandidate.FindAllStringIndex(input, -1) {
		candidate := nonDigitSeparator.ReplaceAllString(input[m[0]:m[1]], "")
		if luhnValid(candidate) {
			spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:card]", confidence: 0.9, kind: "pii_card"})
		}
	}
	for _, m := range phonePattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:phone]", confidence: 0.6, kind: "pii_phone"})
	}
	for _, m := range ipv6Pattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:ip]", confidence: 0.7, kind: "pii_ip"})
	}
	for _, m := range ipv4Pattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:ip]", confidence: 0.7, kind: "pii_ip"})
	}

	out, findings := applySpans(input, spans, piiLayer{}.Name())
	return layerOutput{output: out, findings: findings}, nil
}

// urlScrubLayer is order-300: strips path/query from URLs whose host is
// outside the tenant's allowlist (spec §4.5 layer 300).
type urlScrubLayer struct{}

func (urlScrubLayer) Order() int  { return 300 }
func (urlScrubLayer) Name() string { return "url_scrubbing" }

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

func (urlScrubLayer) process(input string, ctx Context) (layerOutput, error) {
	var spans []span

	for _, m := range urlPattern.FindAllStringIndex(input, -1) {
		raw := input[m[0]:m[1]]
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if ctx.AllowedHosts[parsed.Hostname()] {
			continue
		}
		if parsed.Path == "" && parsed.RawQuery == "" {
			continue
		}
		scrubbed := parsed.Scheme + "://" + parsed.Host
		spans = append(spans, span{start: m[0], end: m[1], replacement: scrubbed, confidence: 0.8, kind: "url"})
	}

	out, findings := applySpans(input, spans, urlScrubLayer{}.Name())
	return layerOutput{output: out, findings: findings}, nil
}

// tenantDeidentLayer is order-400: case-insensitive replacement of the
// tenant id, agent id, and any UUID (spec §4.5 layer 400).
type tenantDeidentLayer struct{}

func (tenantDeidentLayer) Order() int  { return 400 }
func (tenantDeidentLayer) Name() string { return "tenant_deidentification" }

var uuidPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)

func (tenantDeidentLayer) process(input string, ctx Context) (layerOutput, error) {
	var spans []span

	addCaseInsensitive := func(needle, kind, replacement string) {
		if needle == "" {
			return
		}
		lowerInput := strings.ToLower(input)
		lowerNeedle := strings.ToLower(needle)
		start := 0
		for {
			idx := strings.Index(lowerInput[start:], lowerNeedle)
			if idx < 0 {
				break
			}
			absStart := start + idx
			absEnd := absStart + len(needle)
			spans = append(spans, span{start: absStart, end: absEnd, replacement: replacement, confidence: 0.99, kind: kind})
			start = absEnd
		}
	}

	addCaseInsensitive(ctx.TenantID, "tenant_id", "[REDACTED:tenant]")
	addCaseInsensitive(ctx.AgentID, "agent_id", "[REDACTED:agent]")

	for _, m := range uuidPattern.FindAllStringIndex(input, -1) {
		spans = append(spans, span{start: m[0], end: m[1], replacement: "[REDACTED:uuid]", confidence: 0.75, kind: "uuid"})
	}

	out, findings := applySpans(input, spans, tenantDeidentLayer{}.Name())
	return layerOutput{output: out, findings: findings}, nil
}

// semanticDenyLayer is order-500: a per-tenant rule set of substrings or
// regexes; any hit blocks the artifact outright (spec §4.5 layer 500).
type semanticDenyLayer struct{}

func (semanticDenyLayer) Order() int  { return 500 }
func (semanticDenyLayer) Name() string { return "semantic_deny_list" }

func (semanticDenyLayer) process(input string, ctx Context) (layerOutput, error) {
	lower := strings.ToLower(input)
	for _, rule := range ctx.DenyListRules {
		if rule.Substring != "" && strings.Contains(lower, strings.ToLower(rule.Substring)) {
			return layerOutput{blocked: true, reason: "matched deny-list substring: " + rule.Substring}, nil
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				continue
			}
			if re.MatchString(input) {
				return layerOutput{blocked: true, reason: "matched deny-list pattern: " + rule.Pattern}, nil
			}
		}
	}
	return layerOutput{output: input}, nil
}

// humanReviewConfidenceFloor is the threshold below which a finding from
// an earlier layer routes the artifact to review instead of releasing it
// (spec §4.5 layer 600, "low-confidence findings"). It is not expressed
// as a Layer because its decision needs every finding accumulated across
// layers 100-500, not just the text a single layer sees; Pipeline.Process
// applies it directly after folding the ordered chain.
const humanReviewConfidenceFloor = 0.7
