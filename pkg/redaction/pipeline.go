package redaction

import "sort"

// Pipeline folds an ordered chain of layers over raw text (spec §4.5).
type Pipeline struct {
	layers             []Layer
	queue              ReviewQueue
	humanReviewEnabled bool
	defaultDenyRules   []DenyRule
}

// LayerToggles selects which of the standard layers NewWithConfig
// assembles into the chain, mirroring config.RedactionConfig's
// per-layer enable flags without this package depending on pkg/config.
type LayerToggles struct {
	SecretDetection  bool
	PIIDetection     bool
	URLScrubbing     bool
	Deidentification bool
	DenyList         bool
	HumanReview      bool

	// DefaultDenyRules apply to every call in addition to whatever
	// Context.DenyListRules the caller supplies, typically loaded once at
	// startup from an operator-maintained YAML fixture (see
	// LoadDenyListYAML) rather than sourced per tenant.
	DefaultDenyRules []DenyRule
}

// New builds the standard six-layer pipeline (secret detection through
// semantic deny-list, plus the human-review decision applied after
// folding) backed by queue for layer 600's enqueue step.
func New(queue ReviewQueue) *Pipeline {
	return NewWithConfig(queue, LayerToggles{
		SecretDetection:  true,
		PIIDetection:     true,
		URLScrubbing:     true,
		Deidentification: true,
		DenyList:         true,
		HumanReview:      true,
	})
}

// NewWithConfig builds a pipeline with only the toggled layers present,
// so a deployment can disable individual layers (spec §4.5's per-layer
// toggles) without changing call sites.
func NewWithConfig(queue ReviewQueue, toggles LayerToggles) *Pipeline {
	var layers []Layer
	if toggles.SecretDetection {
		layers = append(layers, secretLayer{})
	}
	if toggles.PIIDetection {
		layers = append(layers, piiLayer{})
	}
	if toggles.URLScrubbing {
		layers = append(layers, urlScrubLayer{})
	}
	if toggles.Deidentification {
		layers = append(layers, tenantDeidentLayer{})
	}
	if toggles.DenyList {
		layers = append(layers, semanticDenyLayer{})
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].Order() < layers[j].Order() })
	return &Pipeline{
		layers:             layers,
		queue:              queue,
		humanReviewEnabled: toggles.HumanReview,
		defaultDenyRules:   toggles.DefaultDenyRules,
	}
}

// Process runs raw through every layer in order, returning the first
// terminal outcome (blocked or pending review) it reaches, or the fully
// redacted result if none of the layers intervened (spec §4.5).
func (p *Pipeline) Process(raw Raw, ctx Context) (Result, error) {
	current := raw.Text()
	var findings []Finding

	if len(p.defaultDenyRules) > 0 {
		ctx.DenyListRules = append(append([]DenyRule{}, p.defaultDenyRules...), ctx.DenyListRules...)
	}

	for _, layer := range p.layers {
		out, err := layer.process(current, ctx)
		if err != nil {
			return Result{}, err
		}
		if out.blocked {
			return Result{
				Status: StatusBlocked,
				Reason: out.reason,
				Layer:  layer.Name(),
			}, nil
		}
		current = out.output
		findings = append(findings, out.findings...)
	}

	if p.humanReviewEnabled && (ctx.RequireReview || hasLowConfidenceFinding(findings)) {
		reviewID, err := p.queue.Enqueue(PendingReview{
			TenantID: ctx.TenantID,
			Content:  current,
			Findings: findings,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Status:   StatusPendingReview,
			ReviewID: reviewID,
			Findings: findings,
		}, nil
	}

	return Result{
		Status:   StatusRedacted,
		Content:  redactedFrom(current),
		Findings: findings,
	}, nil
}

func hasLowConfidenceFinding(findings []Finding) bool {
	for _, f := range findings {
		if f.Confidence < humanReviewConfidenceFloor {
			return true
		}
	}
	return false
}
