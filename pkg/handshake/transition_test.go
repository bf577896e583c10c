package handshake

import (
	"errors"
	"testing"

	"github.com/mash-protocol/busgo/pkg/transport"
)

var testGUID = GUID{0x1d, 0x1f, 0x3d, 0x6e, 0x0c, 0x8a, 0x4c, 0x5d, 0x9b, 0x2b, 0x8f, 0x7a, 0x6e, 0x5d, 0x4c, 0x3b}

func TestClientStart(t *testing.T) {
	res := clientStart(1000)
	if res.next != ClientWaitingForAuthReply {
		t.Errorf("next = %s, want WaitingForAuthReply", res.next)
	}
	if res.reply != "\x00AUTH EXTERNAL 31303030\r\n" {
		t.Errorf("reply = %q", res.reply)
	}
}

func TestClientTransition(t *testing.T) {
	okLine := "OK " + testGUID.String()

	tests := []struct {
		name      string
		step      ClientStep
		line      string
		negotiate bool
		wantNext  ClientStep
		wantReply string
		wantFd    fdEffect
		wantErr   error
	}{
		{"ok negotiates fds", ClientWaitingForAuthReply, okLine, true, ClientWaitingForFdNegotiationReply, lineNegotiateUnixFD, fdKeep, nil},
		{"ok without negotiation", ClientWaitingForAuthReply, okLine, false, ClientDone, lineBegin, fdRefuse, nil},
		{"rejected", ClientWaitingForAuthReply, "REJECTED EXTERNAL", true, 0, "", fdKeep, ErrUnexpectedReply},
		{"ok without guid", ClientWaitingForAuthReply, "OK", true, 0, "", fdKeep, ErrUnexpectedReply},
		{"ok with extra token", ClientWaitingForAuthReply, okLine + " more", true, 0, "", fdKeep, ErrUnexpectedReply},
		{"ok with bad guid", ClientWaitingForAuthReply, "OK xyz", true, 0, "", fdKeep, ErrInvalidGUID},
		{"agree", ClientWaitingForFdNegotiationReply, "AGREE_UNIX_FD", true, ClientDone, lineBegin, fdAgree, nil},
		{"error refuses", ClientWaitingForFdNegotiationReply, "ERROR not today", true, ClientDone, lineBegin, fdRefuse, nil},
		{"garbage negotiation reply", ClientWaitingForFdNegotiationReply, "DATA", true, 0, "", fdKeep, ErrUnexpectedReply},
		{"input when done", ClientDone, "OK", true, 0, "", fdKeep, ErrHandshake},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := clientTransition(tt.step, tt.line, tt.negotiate)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrHandshake) {
					t.Errorf("error %v should be an ErrHandshake", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("clientTransition failed: %v", err)
			}
			if res.next != tt.wantNext {
				t.Errorf("next = %s, want %s", res.next, tt.wantNext)
			}
			if res.reply != tt.wantReply {
				t.Errorf("reply = %q, want %q", res.reply, tt.wantReply)
			}
			if res.fd != tt.wantFd {
				t.Errorf("fd = %d, want %d", res.fd, tt.wantFd)
			}
		})
	}
}

func TestClientTransitionRecordsGUID(t *testing.T) {
	res, err := clientTransition(ClientWaitingForAuthReply, "OK "+testGUID.String(), true)
	if err != nil {
		t.Fatalf("clientTransition failed: %v", err)
	}
	if res.guid != testGUID {
		t.Errorf("guid = %s, want %s", res.guid, testGUID)
	}
}

func TestServerTransition(t *testing.T) {
	params := serverParams{
		clientUID: 1000,
		guid:      testGUID,
		rejected:  "REJECTED EXTERNAL\r\n",
		allowFd:   true,
	}
	okReply := "OK " + testGUID.String() + "\r\n"

	tests := []struct {
		name      string
		step      ServerStep
		line      string
		wantNext  ServerStep
		wantReply string
		wantFd    fdEffect
		wantErr   error
	}{
		// --- WaitingForAuth ---
		{"matching uid", ServerWaitingForAuth, "AUTH EXTERNAL 31303030", ServerSendingAuthOK, okReply, fdKeep, nil},
		{"mismatched uid", ServerWaitingForAuth, "AUTH EXTERNAL 30", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"auth without uid", ServerWaitingForAuth, "AUTH EXTERNAL", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"bare auth", ServerWaitingForAuth, "AUTH", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"other mechanism", ServerWaitingForAuth, "AUTH ANONYMOUS 74657374", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"error line", ServerWaitingForAuth, "ERROR something", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"unknown command", ServerWaitingForAuth, "HELLO", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"empty line", ServerWaitingForAuth, "", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdKeep, nil},
		{"begin before auth", ServerWaitingForAuth, "BEGIN", 0, "", fdKeep, ErrBeginBeforeAuth},
		{"invalid hex uid", ServerWaitingForAuth, "AUTH EXTERNAL zz", 0, "", fdKeep, ErrInvalidUID},
		{"non-decimal uid", ServerWaitingForAuth, "AUTH EXTERNAL 6162", 0, "", fdKeep, ErrInvalidUID},

		// --- WaitingForBegin ---
		{"begin", ServerWaitingForBegin, "BEGIN", ServerDone, "", fdKeep, nil},
		{"negotiate", ServerWaitingForBegin, "NEGOTIATE_UNIX_FD", ServerSendingBeginMessage, lineAgreeUnixFD, fdAgree, nil},
		{"cancel", ServerWaitingForBegin, "CANCEL", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdRefuse, nil},
		{"error in begin", ServerWaitingForBegin, "ERROR oops", ServerSendingAuthError, "REJECTED EXTERNAL\r\n", fdRefuse, nil},
		{"unknown in begin", ServerWaitingForBegin, "DATA 00", ServerSendingBeginMessage, lineUnsupported, fdKeep, nil},
		{"begin with args", ServerWaitingForBegin, "BEGIN now", ServerSendingBeginMessage, lineUnsupported, fdKeep, nil},

		// --- no input expected ---
		{"sending step", ServerSendingAuthOK, "BEGIN", 0, "", fdKeep, ErrHandshake},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := serverTransition(tt.step, tt.line, params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("serverTransition failed: %v", err)
			}
			if res.next != tt.wantNext {
				t.Errorf("next = %s, want %s", res.next, tt.wantNext)
			}
			if res.reply != tt.wantReply {
				t.Errorf("reply = %q, want %q", res.reply, tt.wantReply)
			}
			if res.fd != tt.wantFd {
				t.Errorf("fd = %d, want %d", res.fd, tt.wantFd)
			}
		})
	}
}

func TestServerTransitionRefusesFdsWhenNotAllowed(t *testing.T) {
	params := serverParams{clientUID: 0, guid: testGUID, rejected: "REJECTED EXTERNAL\r\n"}
	res, err := serverTransition(ServerWaitingForBegin, "NEGOTIATE_UNIX_FD", params)
	if err != nil {
		t.Fatalf("serverTransition failed: %v", err)
	}
	if res.reply != lineFdRefused || res.fd != fdRefuse {
		t.Errorf("got reply %q fd %d, want refusal", res.reply, res.fd)
	}
}

func TestServerAfterFlush(t *testing.T) {
	tests := []struct {
		step ServerStep
		want ServerStep
	}{
		{ServerSendingAuthOK, ServerWaitingForBegin},
		{ServerSendingAuthError, ServerWaitingForAuth},
		{ServerSendingBeginMessage, ServerWaitingForBegin},
		{ServerWaitingForAuth, ServerWaitingForAuth},
	}

	for _, tt := range tests {
		if got := serverAfterFlush(tt.step); got != tt.want {
			t.Errorf("serverAfterFlush(%s) = %s, want %s", tt.step, got, tt.want)
		}
	}
}

func TestIoOperations(t *testing.T) {
	if got := clientIoOperation(ClientInit, false); got != transport.IoNone {
		t.Errorf("client Init = %s, want NONE", got)
	}
	if got := clientIoOperation(ClientWaitingForAuthReply, false); got != transport.IoRead {
		t.Errorf("client WaitingForAuthReply = %s, want READ", got)
	}
	if got := clientIoOperation(ClientWaitingForAuthReply, true); got != transport.IoWrite {
		t.Errorf("client with pending send = %s, want WRITE", got)
	}
	if got := clientIoOperation(ClientDone, true); got != transport.IoWrite {
		t.Errorf("client Done with BEGIN queued = %s, want WRITE", got)
	}

	reads := []ServerStep{ServerWaitingForNull, ServerWaitingForAuth, ServerWaitingForBegin}
	for _, s := range reads {
		if got := serverIoOperation(s); got != transport.IoRead {
			t.Errorf("server %s = %s, want READ", s, got)
		}
	}
	writes := []ServerStep{ServerSendingAuthOK, ServerSendingAuthError, ServerSendingBeginMessage}
	for _, s := range writes {
		if got := serverIoOperation(s); got != transport.IoWrite {
			t.Errorf("server %s = %s, want WRITE", s, got)
		}
	}
	if got := serverIoOperation(ServerDone); got != transport.IoNone {
		t.Errorf("server Done = %s, want NONE", got)
	}
}

func TestStepStrings(t *testing.T) {
	if ClientWaitingForFdNegotiationReply.String() != "WaitingForFdNegotiationReply" {
		t.Errorf("unexpected client step name %q", ClientWaitingForFdNegotiationReply)
	}
	if ServerSendingBeginMessage.String() != "SendingBeginMessage" {
		t.Errorf("unexpected server step name %q", ServerSendingBeginMessage)
	}
	if ClientStep(99).String() != "Unknown" || ServerStep(99).String() != "Unknown" {
		t.Error("out-of-range steps should be Unknown")
	}
}
