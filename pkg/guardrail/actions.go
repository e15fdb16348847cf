package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/slack-go/slack"

	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

const actionDispatchTimeout = 10 * time.Second

// ActionOutcome is the textual, always-produced result of dispatching an
// action (spec §4.6: "an exception becomes a failed result string,
// never a crash").
type ActionOutcome struct {
	Executed bool
	Result   string
}

// dispatchAction runs the action named by r.ActionType against agentID,
// never returning an error — failures are folded into the outcome's
// Result string so the tick loop can always persist a trigger-history
// record.
func dispatchAction(ctx context.Context, projections storage.ProjectionStore, httpClient *http.Client, r Rule, agentID string, eval Evaluation) ActionOutcome {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: actionDispatchTimeout}
	}

	switch r.ActionType {
	case ActionPauseAgent:
		return dispatchPauseAgent(ctx, projections, r, agentID)
	case ActionNotifyWebhook:
		return dispatchNotifyWebhook(ctx, httpClient, r, agentID, eval)
	case ActionDowngradeModel:
		return dispatchDowngradeModel(ctx, projections, r, agentID)
	case ActionAgentGatePolicy:
		return dispatchAgentGatePolicy(ctx, httpClient, r, agentID, eval)
	default:
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("unknown action type %q", r.ActionType)}
	}
}

func tenantScopedAgent(ctx context.Context, tenantID string) tenant.Context {
	return tenant.WithTenant(ctx, tenantID)
}

func dispatchPauseAgent(ctx context.Context, projections storage.ProjectionStore, r Rule, agentID string) ActionOutcome {
	tctx := tenantScopedAgent(ctx, r.TenantID)
	agent, err := projections.GetAgent(tctx, agentID)
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("pause_agent: load agent: %v", err)}
	}
	now := time.Now().UTC()
	message := configString(r.ActionConfig, "message", fmt.Sprintf("paused by guardrail rule %s", r.Name))
	agent.PausedAt = &now
	agent.PauseReason = &message
	if err := projections.UpsertAgent(tctx, agent); err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("pause_agent: save agent: %v", err)}
	}
	return ActionOutcome{Executed: true, Result: fmt.Sprintf("paused agent %s: %s", agentID, message)}
}

func dispatchDowngradeModel(ctx context.Context, projections storage.ProjectionStore, r Rule, agentID string) ActionOutcome {
	targetModel := configString(r.ActionConfig, "targetModel", "")
	if targetModel == "" {
		return ActionOutcome{Executed: false, Result: "downgrade_model: targetModel not configured"}
	}
	tctx := tenantScopedAgent(ctx, r.TenantID)
	agent, err := projections.GetAgent(tctx, agentID)
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("downgrade_model: load agent: %v", err)}
	}
	agent.ModelOverride = &targetModel
	if err := projections.UpsertAgent(tctx, agent); err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("downgrade_model: save agent: %v", err)}
	}
	return ActionOutcome{Executed: true, Result: fmt.Sprintf("downgraded agent %s to model %s", agentID, targetModel)}
}

type webhookPayload struct {
	RuleID        string  `json:"ruleId"`
	RuleName      string  `json:"ruleName"`
	ConditionType string  `json:"conditionType"`
	ObservedValue float64 `json:"currentValue"`
	Threshold     float64 `json:"threshold"`
	Message       string  `json:"message"`
	AgentID       string  `json:"agentId"`
	TriggeredAt   string  `json:"triggeredAt"`
}

func dispatchNotifyWebhook(ctx context.Context, client *http.Client, r Rule, agentID string, eval Evaluation) ActionOutcome {
	rawURL := configString(r.ActionConfig, "url", "")
	if err := ssrfGuard(rawURL); err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("notify_webhook: %v", err)}
	}

	message := configString(r.ActionConfig, "message", fmt.Sprintf("guardrail rule %s triggered", r.Name))
	payload := webhookPayload{
		RuleID:        r.ID,
		RuleName:      r.Name,
		ConditionType: string(r.ConditionType),
		ObservedValue: eval.ObservedValue,
		Threshold:     eval.Threshold,
		Message:       message,
		AgentID:       agentID,
		TriggeredAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if configString(r.ActionConfig, "format", "") == "slack" {
		return dispatchSlackWebhook(ctx, client, rawURL, payload)
	}

	return postJSON(ctx, client, rawURL, payload)
}

// dispatchSlackWebhook formats the alert as a Slack message block before
// posting to the configured incoming-webhook URL (still SSRF-guarded —
// the guard already ran in the caller).
func dispatchSlackWebhook(ctx context.Context, client *http.Client, webhookURL string, payload webhookPayload) ActionOutcome {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("*Guardrail triggered:* %s\n%s (observed %.2f, threshold %.2f) on agent %s",
			payload.RuleName, payload.ConditionType, payload.ObservedValue, payload.Threshold, payload.AgentID),
	}
	reqCtx, cancel := context.WithTimeout(ctx, actionDispatchTimeout)
	defer cancel()
	if err := slack.PostWebhookContext(reqCtx, webhookURL, msg); err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("notify_webhook: slack post failed: %v", err)}
	}
	return ActionOutcome{Executed: true, Result: "posted slack notification"}
}

type agentGatePayload struct {
	Action string `json:"action"`
}

func dispatchAgentGatePolicy(ctx context.Context, client *http.Client, r Rule, agentID string, eval Evaluation) ActionOutcome {
	baseURL := configString(r.ActionConfig, "configuredUrl", "")
	policyID := configString(r.ActionConfig, "policyId", "")
	action := configString(r.ActionConfig, "action", "tighten")
	if policyID == "" {
		return ActionOutcome{Executed: false, Result: "agentgate_policy: policyId not configured"}
	}
	targetURL := fmt.Sprintf("%s/api/policies/%s", baseURL, policyID)
	if err := ssrfGuard(targetURL); err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("agentgate_policy: %v", err)}
	}

	body, _ := json.Marshal(agentGatePayload{Action: action})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, targetURL, bytes.NewReader(body))
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("agentgate_policy: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	reqCtx, cancel := context.WithTimeout(ctx, actionDispatchTimeout)
	defer cancel()
	req = req.WithContext(reqCtx)

	resp, err := client.Do(req)
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("agentgate_policy: request failed: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("agentgate_policy: status %d", resp.StatusCode)}
	}
	return ActionOutcome{Executed: true, Result: fmt.Sprintf("applied policy %s action %s", policyID, action)}
}

func postJSON(ctx context.Context, client *http.Client, targetURL string, payload any) ActionOutcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("notify_webhook: encode payload: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("notify_webhook: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	reqCtx, cancel := context.WithTimeout(ctx, actionDispatchTimeout)
	defer cancel()
	req = req.WithContext(reqCtx)

	resp, err := client.Do(req)
	if err != nil {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("notify_webhook: request failed: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ActionOutcome{Executed: false, Result: fmt.Sprintf("notify_webhook: status %d", resp.StatusCode)}
	}
	return ActionOutcome{Executed: true, Result: fmt.Sprintf("posted webhook, status %d", resp.StatusCode)}
}

// ssrfGuard is the enforcement point every action dispatcher calls
// before making an outbound request. It is a package variable (rather
// than a direct call to guardAgainstSSRF) purely so tests can point
// webhook/policy dispatch at an httptest server, which is otherwise
// indistinguishable from the loopback addresses production traffic
// must never reach.
var ssrfGuard = guardAgainstSSRF

// guardAgainstSSRF rejects any target that is not a plain HTTP(S) URL
// pointing at a public, non-loopback, non-link-local address (spec
// §4.6: reject non-HTTP(S) schemes, loopback, RFC 1918, 169.254.0.0/16).
func guardAgainstSSRF(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("target url not configured")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("url has no host")
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Host may be a literal IP; net.ParseIP handles that case
		// directly when LookupIP fails to resolve it as a name.
		if ip := net.ParseIP(host); ip != nil {
			ips = []net.IP{ip}
		} else {
			return fmt.Errorf("resolve host: %w", err)
		}
	}
	for _, ip := range ips {
		if isDisallowedAddress(ip) {
			return fmt.Errorf("target address %s is not allowed", ip)
		}
	}
	return nil
}

var privateRanges = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"169.254.0.0/16", // link-local
		"::1/128",        // loopback v6
		"fc00::/7",       // unique local v6
		"fe80::/10",      // link-local v6
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

func isDisallowedAddress(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
