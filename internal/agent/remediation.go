package agent

// Pre-written remediation texts, one per terminal classification. These
// are returned as ordinary responses so the boundary layer renders them
// like any other answer.
const (
	missingKeyText = "No Gemini API key is configured. Add gemini.api_key to your " +
		"config file (an environment reference like ${GEMINI_API_KEY} works) and restart."

	quotaExhaustedText = "The model service reports its quota is exhausted (429). " +
		"Check your plan and billing details, or switch to a different API key."

	invalidKeyText = "The model service rejected the configured API key. " +
		"Provide a valid Gemini API key and restart."

	internalErrorText = "The model service reported an internal error and did not " +
		"recover after retries. Wait a little and try again, or switch API keys."

	genericFailureText = "Something went wrong while processing your request. Please try again."
)

// remediation maps a terminal classification to its fixed response.
func remediation(class Classification) *Response {
	switch class {
	case MissingKey:
		return &Response{Text: missingKeyText}
	case QuotaExhausted:
		return &Response{Text: quotaExhaustedText}
	case InvalidKey:
		return &Response{Text: invalidKeyText}
	case InternalError, Transient:
		return &Response{Text: internalErrorText}
	default:
		return &Response{Text: genericFailureText}
	}
}
