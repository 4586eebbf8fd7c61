package agent

import "strings"

// Classification buckets a raw model-service failure into a
// user-actionable category.
type Classification int

const (
	// Unclassified means no predicate matched; the failure is re-raised
	// to the caller after the retry controller gives up.
	Unclassified Classification = iota

	// MissingKey means no model credential was configured. Checked up
	// front by the orchestrator, never produced by Classify.
	MissingKey

	// Transient means the failure is likely to succeed on retry.
	Transient

	// QuotaExhausted means the model service rejected the request for
	// rate or quota reasons.
	QuotaExhausted

	// InvalidKey means the configured credential was rejected.
	InvalidKey

	// InternalError is what a Transient failure becomes once retries
	// are exhausted. Never produced by Classify directly.
	InternalError
)

func (c Classification) String() string {
	switch c {
	case MissingKey:
		return "missing_key"
	case Transient:
		return "transient"
	case QuotaExhausted:
		return "quota_exhausted"
	case InvalidKey:
		return "invalid_key"
	case InternalError:
		return "internal_error"
	default:
		return "unclassified"
	}
}

// classifyRule is one (predicates, classification) pair. Rules are
// evaluated top to bottom and the first match wins.
type classifyRule struct {
	substrings []string
	class      Classification
}

// classifyRules is the classification policy. The upstream service does
// not expose structured error codes at this layer, so classification is
// lexical over the error message. Ordering matters: some messages match
// more than one rule (a 500 body can mention quota, for example), and
// transient-before-quota is the established behavior. Do not reorder.
var classifyRules = []classifyRule{
	{[]string{"500", "INTERNAL", "Service Unavailable", "Deadline Exceeded"}, Transient},
	{[]string{"429", "RESOURCE_EXHAUSTED"}, QuotaExhausted},
	{[]string{"API_KEY_INVALID", "invalid API key"}, InvalidKey},
}

// Classify maps a failure to its Classification by matching the error
// message against the ordered rule table.
func Classify(err error) Classification {
	if err == nil {
		return Unclassified
	}
	msg := err.Error()
	for _, rule := range classifyRules {
		for _, sub := range rule.substrings {
			if strings.Contains(msg, sub) {
				return rule.class
			}
		}
	}
	return Unclassified
}
