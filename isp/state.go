package isp

// State is the phase of a single exchange.
type State uint8

const (
	StateIdle State = iota
	StateSent
	StateAwaitingResponse
	StateValidated
	StateTimedOut
	StateProtocolError
	StateTransportError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSent:
		return "Sent"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateValidated:
		return "Validated"
	case StateTimedOut:
		return "TimedOut"
	case StateProtocolError:
		return "ProtocolError"
	case StateTransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether an exchange ends in s.
func (s State) IsTerminal() bool {
	return s >= StateValidated
}
