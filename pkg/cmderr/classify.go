package cmderr

import "errors"

// Outcome is the reply shape chosen for a failure.
type Outcome int

const (
	// OutcomeInternal replies with a generic message and logs the failure.
	OutcomeInternal Outcome = iota
	// OutcomeUsage replies with the usage string of the matched path.
	OutcomeUsage
	// OutcomePayload replies with the label-prefixed formatted payload.
	OutcomePayload
	// OutcomeMessage replies with the label-prefixed plain message.
	OutcomeMessage
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUsage:
		return "usage"
	case OutcomePayload:
		return "payload"
	case OutcomeMessage:
		return "message"
	default:
		return "internal"
	}
}

// Classify picks the reply shape for err. Rules are evaluated in order and
// the first match wins:
//
//  1. missing argument          -> usage
//  2. structured with a payload -> payload
//  3. structured, plain message -> message
//  4. type mismatch             -> usage
//  5. anything else             -> internal
//
// The returned *Error is nil only for OutcomeInternal with a foreign error.
func Classify(err error) (Outcome, *Error) {
	var ce *Error
	if !errors.As(err, &ce) {
		return OutcomeInternal, nil
	}

	switch {
	case ce.Kind == KindMissingArgument:
		return OutcomeUsage, ce
	case ce.Structured() && ce.Payload != "":
		return OutcomePayload, ce
	case ce.Structured():
		return OutcomeMessage, ce
	case ce.Kind == KindTypeMismatch:
		return OutcomeUsage, ce
	default:
		return OutcomeInternal, ce
	}
}
