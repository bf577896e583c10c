// Package handshake implements the line-oriented authentication exchange
// that precedes all bus traffic on a byte stream.
//
// # Client
//
// The client sends a NUL byte followed by "AUTH EXTERNAL <hex uid>",
// expects "OK <guid>", optionally negotiates descriptor passing with
// NEGOTIATE_UNIX_FD and finishes with BEGIN:
//
//	C: \0AUTH EXTERNAL 31303030
//	S: OK 1d1f3d6e0c8a4c5d9b2b8f7a6e5d4c3b
//	C: NEGOTIATE_UNIX_FD
//	S: AGREE_UNIX_FD
//	C: BEGIN
//
// # Server
//
// The server compares the claimed uid with the expected one. A mismatch is
// not an error: it answers REJECTED and waits for another AUTH, until the
// client gives up or the stream ends. Only protocol violations (a first
// byte other than NUL, BEGIN before authentication, an undecodable uid)
// abort the handshake.
//
// # Driving
//
// Both sides are non-blocking state machines. Advance makes as much
// progress as the socket allows and returns iox.ErrWouldBlock when it must
// wait; NextIoOperation says for what. BlockingFinish wraps this loop for
// callers that can block. Transitions are pure functions of (step, line),
// so the protocol is tested without sockets.
package handshake
