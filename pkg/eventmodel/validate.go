package eventmodel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SessionStartedPayload is the payload shape for TypeSessionStarted.
type SessionStartedPayload struct {
	AgentName string   `json:"agentName" validate:"required"`
	Tags      []string `json:"tags,omitempty"`
}

// SessionEndedPayload is the payload shape for TypeSessionEnded.
type SessionEndedPayload struct {
	Reason string `json:"reason" validate:"required,oneof=completed error cancelled"`
}

// ToolCallPayload is the payload shape for TypeToolCall.
type ToolCallPayload struct {
	ToolName  string         `json:"toolName" validate:"required"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResponsePayload is the payload shape for TypeToolResponse.
type ToolResponsePayload struct {
	ToolName string `json:"toolName" validate:"required"`
	Result   any    `json:"result,omitempty"`
	DurationMs int64 `json:"durationMs,omitempty" validate:"gte=0"`
}

// ToolErrorPayload is the payload shape for TypeToolError.
type ToolErrorPayload struct {
	ToolName string `json:"toolName" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

// ApprovalPayload covers requested/granted/denied approval lifecycle events.
type ApprovalPayload struct {
	ApprovalID string `json:"approvalId" validate:"required"`
	Reason     string `json:"reason,omitempty"`
}

// FormPayload covers requested/submitted form lifecycle events.
type FormPayload struct {
	FormID string         `json:"formId" validate:"required"`
	Fields map[string]any `json:"fields,omitempty"`
}

// CostTrackedPayload is the payload shape for TypeCostTracked.
type CostTrackedPayload struct {
	CostUSD float64 `json:"costUsd" validate:"gte=0"`
	Model   string  `json:"model,omitempty"`
}

// LLMCallPayload is the payload shape for TypeLLMCall.
type LLMCallPayload struct {
	Model         string `json:"model" validate:"required"`
	InputTokens   int    `json:"inputTokens,omitempty" validate:"gte=0"`
	ToolCount     int    `json:"toolCount,omitempty" validate:"gte=0"`
}

// LLMResponsePayload is the payload shape for TypeLLMResponse.
type LLMResponsePayload struct {
	Model        string `json:"model" validate:"required"`
	OutputTokens int    `json:"outputTokens,omitempty" validate:"gte=0"`
	InputTokens  int    `json:"inputTokens,omitempty" validate:"gte=0"`
}

// AlertPayload covers triggered/resolved alert events emitted by the
// guardrail engine back onto the event store (spec §4.6).
type AlertPayload struct {
	RuleID        string  `json:"ruleId" validate:"required"`
	ConditionType string  `json:"conditionType,omitempty"`
	ObservedValue float64 `json:"observedValue,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
}

// validatorFor dispatches a Type to the struct its payload must match.
// Returns nil for TypeCustom, which carries no fixed schema.
func validatorFor(t Type) any {
	switch t {
	case TypeSessionStarted:
		return &SessionStartedPayload{}
	case TypeSessionEnded:
		return &SessionEndedPayload{}
	case TypeToolCall:
		return &ToolCallPayload{}
	case TypeToolResponse:
		return &ToolResponsePayload{}
	case TypeToolError:
		return &ToolErrorPayload{}
	case TypeApprovalRequested, TypeApprovalGranted, TypeApprovalDenied:
		return &ApprovalPayload{}
	case TypeFormRequested, TypeFormSubmitted:
		return &FormPayload{}
	case TypeCostTracked:
		return &CostTrackedPayload{}
	case TypeLLMCall:
		return &LLMCallPayload{}
	case TypeLLMResponse:
		return &LLMResponsePayload{}
	case TypeAlertTriggered, TypeAlertResolved:
		return &AlertPayload{}
	case TypeCustom:
		return nil
	default:
		return nil
	}
}

// ValidatePayload validates e.Payload against the schema for e.EventType,
// returning an *apperrors.Error (KindValidation) describing every failing
// path when validation fails. Unknown event types are rejected at ingest
// (spec §9, "Dynamically-typed payloads").
func ValidatePayload(e Event) error {
	if !e.EventType.Valid() {
		return apperrors.ValidationError("unknown event type %q", e.EventType)
	}
	if !e.Severity.Valid() {
		return apperrors.ValidationError("unknown severity %q", e.Severity)
	}

	target := validatorFor(e.EventType)
	if target == nil {
		return nil // TypeCustom: no fixed schema
	}

	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, "payload is not serialisable")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, "payload does not match schema for %s", e.EventType)
	}

	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if asValidationErrors(err, &verrs) {
			paths := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				paths = append(paths, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
			}
			return apperrors.ValidationError("payload for %s invalid: %s", e.EventType, strings.Join(paths, "; "))
		}
		return apperrors.Wrap(apperrors.KindValidation, err, "payload validation error")
	}

	return nil
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}
