package messaging

import "strings"

// Subject constants. Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectInvoke carries invocation events for the connector.
	SubjectInvoke = "etl.central-square.invoke"

	// SubjectFeaturesPrefix prefixes per-layer feature collection subjects.
	SubjectFeaturesPrefix = "etl.features"

	// SubjectDLQPrefix prefixes dead-lettered payload subjects.
	SubjectDLQPrefix = "etl.dlq"
)

// QueueConnector is the queue group shared by connector instances so each
// invocation event is handled once.
const QueueConnector = "etl-central-square"

// FeaturesSubject returns the subject feature collections for layer are
// published to. Example: etl.features.cad-incidents
func FeaturesSubject(layer string) string {
	return SubjectFeaturesPrefix + "." + token(layer)
}

// DLQSubject returns the dead letter subject for a failure reason.
// Example: etl.dlq.submission_failure
func DLQSubject(reason string) string {
	return SubjectDLQPrefix + "." + token(reason)
}

// token makes s safe as a single subject token.
func token(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
