package eventmodel

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// HashFields is the exact set of attributes folded into an event's
// self-hash (spec §3, "Hash contract"). PrevHash is nil for the first
// event in a session.
type HashFields struct {
	ID        string
	Timestamp string // RFC3339Nano, already formatted by the caller
	SessionID string
	AgentID   string
	EventType Type
	Severity  Severity
	Payload   map[string]any
	Metadata  map[string]any
	PrevHash  *string
}

// ComputeEventHash computes the hex-encoded SHA-256 digest over the
// canonical serialisation of f. Canonical serialisation sorts object keys
// lexicographically at every nesting level so the digest is reproducible
// byte-for-byte across implementations (spec §3, §4.1).
func ComputeEventHash(f HashFields) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKV(&buf, "id", f.ID, true)
	writeKV(&buf, "timestamp", f.Timestamp, true)
	writeKV(&buf, "sessionId", f.SessionID, true)
	writeKV(&buf, "agentId", f.AgentID, true)
	writeKV(&buf, "eventType", string(f.EventType), true)
	writeKV(&buf, "severity", string(f.Severity), true)
	buf.WriteString(`"payload":`)
	writeCanonicalValue(&buf, f.Payload)
	buf.WriteByte(',')
	buf.WriteString(`"metadata":`)
	writeCanonicalValue(&buf, f.Metadata)
	buf.WriteByte(',')
	buf.WriteString(`"prevHash":`)
	if f.PrevHash == nil {
		buf.WriteString("null")
	} else {
		writeCanonicalValue(&buf, *f.PrevHash)
	}
	buf.WriteByte('}')

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// EventHash computes the self-hash for a fully-populated Event, formatting
// its timestamp as RFC3339Nano the way every agentlens component does for
// wire and storage representations.
func EventHash(e Event) string {
	return ComputeEventHash(HashFields{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(rfc3339Nano),
		SessionID: e.SessionID,
		AgentID:   e.AgentID,
		EventType: e.EventType,
		Severity:  e.Severity,
		Payload:   e.Payload,
		Metadata:  e.Metadata,
		PrevHash:  e.PrevHash,
	})
}

const rfc3339Nano = "2006-01-02T15:04:05.999999999Z07:00"

func writeKV(buf *bytes.Buffer, key, value string, comma bool) {
	writeCanonicalValue(buf, key)
	buf.WriteByte(':')
	writeCanonicalValue(buf, value)
	if comma {
		buf.WriteByte(',')
	}
}

// writeCanonicalValue serialises v (string, map[string]any, []any, or a
// JSON-ish scalar) with object keys sorted lexicographically and no
// insignificant whitespace.
func writeCanonicalValue(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		writeJSONString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case map[string]any:
		writeCanonicalObject(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalValue(buf, item)
		}
		buf.WriteByte(']')
	default:
		fmt.Fprintf(buf, "%v", formatScalar(val))
	}
}

func writeCanonicalObject(buf *bytes.Buffer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, k)
		buf.WriteByte(':')
		writeCanonicalValue(buf, m[k])
	}
	buf.WriteByte('}')
}

// writeJSONString writes a minimally-escaped JSON string literal.
func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// formatScalar normalises numeric types (JSON decoding produces
// float64, but callers may also pass int/int64 directly) to a
// string representation stable across implementations.
func formatScalar(v any) string {
	switch n := v.(type) {
	case float64:
		return trimFloat(n)
	case float32:
		return trimFloat(float64(n))
	case int:
		return fmt.Sprintf("%d", n)
	case int64:
		return fmt.Sprintf("%d", n)
	default:
		return fmt.Sprintf("%v", n)
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
