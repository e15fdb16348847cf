// Package tracing wraps the OpenTelemetry tracer used around the three
// transactional boundaries spec §5 calls out: event-store inserts,
// guardrail trigger recording, and the retention purge. No exporter is
// configured here; a host process wires one in by calling
// otel.SetTracerProvider before startup, the same "tracer is free, a
// provider is optional" split the teacher's telemetry package uses.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/agentkitai/agentlens-sub008"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// StartEventInsert begins the span around a batch event-store insert.
func StartEventInsert(ctx context.Context, tenantID string, count int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "storage.insert_events",
		trace.WithAttributes(
			attribute.String("agentlens.tenant_id", tenantID),
			attribute.Int("agentlens.event_count", count),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartGuardrailTrigger begins the span around recording a guardrail
// rule trigger and its associated action.
func StartGuardrailTrigger(ctx context.Context, tenantID, ruleID, actionType string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "guardrail.fire",
		trace.WithAttributes(
			attribute.String("agentlens.tenant_id", tenantID),
			attribute.String("agentlens.rule_id", ruleID),
			attribute.String("agentlens.action_type", actionType),
		),
	)
}

// StartRetentionPurge begins the span around one tenant's retention
// purge run.
func StartRetentionPurge(ctx context.Context, tenantID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "retention.purge",
		trace.WithAttributes(attribute.String("agentlens.tenant_id", tenantID)),
	)
}
