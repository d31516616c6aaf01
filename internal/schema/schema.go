// Package schema advertises the connector's configuration and output shapes
// as JSON Schema documents and validates values against them.
package schema

import "strings"

// Kind selects which schema is requested.
type Kind string

// Flow is the data flow direction a schema applies to.
type Flow string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"

	FlowIncoming Flow = "incoming"
	FlowOutgoing Flow = "outgoing"
)

// DebugField is the name of the connector's only configuration field.
const DebugField = "DEBUG"

// Document is a JSON Schema document.
type Document map[string]any

// ParseKind parses a kind name case-insensitively. An empty name yields the
// default KindInput; unknown names are returned as-is and resolve to the
// empty schema.
func ParseKind(s string) Kind {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindInput
	}
	return Kind(s)
}

// ParseFlow parses a flow name case-insensitively. An empty name yields the
// default FlowIncoming.
func ParseFlow(s string) Flow {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FlowIncoming
	}
	return Flow(s)
}

// Schema returns the schema for the given kind and flow. It never fails:
// anything other than an incoming input or output schema is the empty object
// schema. Each call returns a fresh document.
func Schema(kind Kind, flow Flow) Document {
	if flow != FlowIncoming {
		return Empty()
	}
	switch kind {
	case KindInput:
		return Input()
	case KindOutput:
		return Output()
	default:
		return Empty()
	}
}

// Input is the configuration schema read by scheduled runs.
func Input() Document {
	return Document{
		"type": "object",
		"properties": map[string]any{
			DebugField: map[string]any{
				"type":        "boolean",
				"default":     false,
				"description": "Print results in logs",
			},
		},
		"required": []any{DebugField},
	}
}

// Output describes the properties this connector adds under
// properties.metadata. It promises nothing beyond the shared contract.
func Output() Document {
	return Empty()
}

// Empty is an object schema with no properties and no required fields.
func Empty() Document {
	return Document{
		"type":       "object",
		"properties": map[string]any{},
	}
}
