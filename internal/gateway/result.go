package gateway

// Outcome classifies a Result for the transport layer
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeForbidden
	OutcomeInvalid
	OutcomeFailed
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Payload is the operation-specific part of an envelope
type Payload map[string]any

// Result is the envelope of one gateway operation
type Result struct {
	Outcome Outcome
	Body    map[string]any
}

// OK reports whether the operation succeeded
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Available wraps a successful read
func Available(payload Payload) Result {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["available"] = true
	return Result{Outcome: OutcomeOK, Body: body}
}

// Unavailable wraps a failed read
func Unavailable(outcome Outcome, message string) Result {
	body := map[string]any{"available": false, "error": message}
	if outcome == OutcomeUnsupported {
		body["unsupported"] = true
	}
	return Result{Outcome: outcome, Body: body}
}

// Succeeded wraps a successful write. Payload keys sit beside success and message.
func Succeeded(message string, payload Payload) Result {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	if message != "" {
		body["message"] = message
	}
	return Result{Outcome: OutcomeOK, Body: body}
}

// Failed wraps a failed write
func Failed(outcome Outcome, message string) Result {
	body := map[string]any{"success": false, "error": message}
	if outcome == OutcomeUnsupported {
		body["unsupported"] = true
	}
	return Result{Outcome: outcome, Body: body}
}
