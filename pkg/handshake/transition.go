package handshake

import (
	"fmt"
	"strings"

	"github.com/mash-protocol/busgo/pkg/transport"
)

// Wire lines.
const (
	lineBegin           = "BEGIN\r\n"
	lineNegotiateUnixFD = "NEGOTIATE_UNIX_FD\r\n"
	lineAgreeUnixFD     = "AGREE_UNIX_FD\r\n"
	lineUnsupported     = "ERROR Unsupported command\r\n"
	lineFdRefused       = "ERROR Unix fd passing not supported\r\n"
)

// fdEffect is how a transition changes the negotiated fd capability.
type fdEffect uint8

const (
	fdKeep fdEffect = iota
	fdAgree
	fdRefuse
)

func (e fdEffect) apply(current bool) bool {
	switch e {
	case fdAgree:
		return true
	case fdRefuse:
		return false
	default:
		return current
	}
}

// clientResult is the outcome of one client transition.
type clientResult struct {
	next  ClientStep
	reply string
	guid  GUID
	fd    fdEffect
}

// clientStart is the transition out of ClientInit.
func clientStart(uid uint32) clientResult {
	return clientResult{
		next:  ClientWaitingForAuthReply,
		reply: "\x00AUTH EXTERNAL " + EncodeUID(uid) + "\r\n",
	}
}

// clientTransition handles one server line. negotiateFd selects whether
// NEGOTIATE_UNIX_FD is sent after OK.
func clientTransition(step ClientStep, line string, negotiateFd bool) (clientResult, error) {
	switch step {
	case ClientWaitingForAuthReply:
		words := strings.Fields(line)
		if len(words) != 2 || words[0] != "OK" {
			return clientResult{}, fmt.Errorf("%w: %q in %s", ErrUnexpectedReply, line, step)
		}
		guid, err := ParseGUID(words[1])
		if err != nil {
			return clientResult{}, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
		}
		if !negotiateFd {
			return clientResult{next: ClientDone, reply: lineBegin, guid: guid, fd: fdRefuse}, nil
		}
		return clientResult{next: ClientWaitingForFdNegotiationReply, reply: lineNegotiateUnixFD, guid: guid}, nil

	case ClientWaitingForFdNegotiationReply:
		var fd fdEffect
		switch {
		case strings.HasPrefix(line, "AGREE_UNIX_FD"):
			fd = fdAgree
		case strings.HasPrefix(line, "ERROR"):
			fd = fdRefuse
		default:
			return clientResult{}, fmt.Errorf("%w: %q in %s", ErrUnexpectedReply, line, step)
		}
		return clientResult{next: ClientDone, reply: lineBegin, fd: fd}, nil

	default:
		return clientResult{}, fmt.Errorf("%w: no input expected in %s", ErrHandshake, step)
	}
}

// clientIoOperation is the readiness a client in step waits for.
func clientIoOperation(step ClientStep, pendingSend bool) transport.IoOperation {
	if pendingSend {
		return transport.IoWrite
	}
	switch step {
	case ClientWaitingForAuthReply, ClientWaitingForFdNegotiationReply:
		return transport.IoRead
	default:
		return transport.IoNone
	}
}

// serverParams are the inputs of server transitions that do not change
// during a handshake.
type serverParams struct {
	clientUID uint32
	guid      GUID
	rejected  string
	allowFd   bool
}

// serverResult is the outcome of one server transition.
type serverResult struct {
	next  ServerStep
	reply string
	fd    fdEffect
}

// serverTransition handles one client line.
func serverTransition(step ServerStep, line string, p serverParams) (serverResult, error) {
	words := strings.Fields(line)
	first := ""
	if len(words) > 0 {
		first = words[0]
	}

	switch step {
	case ServerWaitingForAuth:
		switch {
		case len(words) == 3 && first == "AUTH" && words[1] == MechanismExternal.String():
			uid, err := ParseUID(words[2])
			if err != nil {
				return serverResult{}, err
			}
			if uid != p.clientUID {
				return serverResult{next: ServerSendingAuthError, reply: p.rejected}, nil
			}
			return serverResult{next: ServerSendingAuthOK, reply: "OK " + p.guid.String() + "\r\n"}, nil
		case len(words) == 1 && first == "BEGIN":
			return serverResult{}, ErrBeginBeforeAuth
		default:
			// Other mechanisms, ERROR and unknown commands are rejected.
			return serverResult{next: ServerSendingAuthError, reply: p.rejected}, nil
		}

	case ServerWaitingForBegin:
		switch {
		case len(words) == 1 && first == "BEGIN":
			return serverResult{next: ServerDone}, nil
		case len(words) == 1 && first == "CANCEL", first == "ERROR":
			return serverResult{next: ServerSendingAuthError, reply: p.rejected, fd: fdRefuse}, nil
		case len(words) == 1 && first == "NEGOTIATE_UNIX_FD":
			if !p.allowFd {
				return serverResult{next: ServerSendingBeginMessage, reply: lineFdRefused, fd: fdRefuse}, nil
			}
			return serverResult{next: ServerSendingBeginMessage, reply: lineAgreeUnixFD, fd: fdAgree}, nil
		default:
			return serverResult{next: ServerSendingBeginMessage, reply: lineUnsupported}, nil
		}

	default:
		return serverResult{}, fmt.Errorf("%w: no input expected in %s", ErrHandshake, step)
	}
}

// serverAfterFlush is the step that follows a completed send.
func serverAfterFlush(step ServerStep) ServerStep {
	switch step {
	case ServerSendingAuthOK:
		return ServerWaitingForBegin
	case ServerSendingAuthError:
		return ServerWaitingForAuth
	case ServerSendingBeginMessage:
		return ServerWaitingForBegin
	default:
		return step
	}
}

// serverIoOperation is the readiness a server in step waits for.
func serverIoOperation(step ServerStep) transport.IoOperation {
	switch step {
	case ServerWaitingForNull, ServerWaitingForAuth, ServerWaitingForBegin:
		return transport.IoRead
	case ServerSendingAuthOK, ServerSendingAuthError, ServerSendingBeginMessage:
		return transport.IoWrite
	default:
		return transport.IoNone
	}
}
