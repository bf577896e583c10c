package handshake

// ClientStep is the state of a ClientHandshake.
type ClientStep uint8

const (
	ClientInit ClientStep = iota
	ClientWaitingForAuthReply
	ClientWaitingForFdNegotiationReply
	ClientDone
)

// String returns the step name.
func (s ClientStep) String() string {
	switch s {
	case ClientInit:
		return "Init"
	case ClientWaitingForAuthReply:
		return "WaitingForAuthReply"
	case ClientWaitingForFdNegotiationReply:
		return "WaitingForFdNegotiationReply"
	case ClientDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// ServerStep is the state of a ServerHandshake.
type ServerStep uint8

const (
	ServerWaitingForNull ServerStep = iota
	ServerWaitingForAuth
	ServerSendingAuthOK
	ServerSendingAuthError
	ServerWaitingForBegin
	ServerSendingBeginMessage
	ServerDone
)

// String returns the step name.
func (s ServerStep) String() string {
	switch s {
	case ServerWaitingForNull:
		return "WaitingForNull"
	case ServerWaitingForAuth:
		return "WaitingForAuth"
	case ServerSendingAuthOK:
		return "SendingAuthOK"
	case ServerSendingAuthError:
		return "SendingAuthError"
	case ServerWaitingForBegin:
		return "WaitingForBegin"
	case ServerSendingBeginMessage:
		return "SendingBeginMessage"
	case ServerDone:
		return "Done"
	default:
		return "Unknown"
	}
}
