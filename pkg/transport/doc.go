// Package transport provides the non-blocking byte-stream sockets the bus
// protocol runs over.
//
// The transport layer handles:
//   - Unix domain stream sockets with descriptor passing (SCM_RIGHTS)
//   - In-memory socket pairs for tests and in-process peers
//   - Flushing encoded payloads together with their descriptor tables
//   - Reading exact payload lengths and collecting received descriptors
//
// # Non-blocking contract
//
// Every Send and Recv may return [code.hybscloud.com/iox.ErrWouldBlock].
// That is a control signal, not a fault: the caller waits for readiness in
// the reported [IoOperation] direction and retries the same call. [Wait]
// performs that wait, using poll(2) on sockets that implement [Waiter] and
// adaptive backoff otherwise.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Bus messages (variant)       │
//	├────────────────────────────────┤
//	│   Authentication (handshake)   │
//	├────────────────────────────────┤
//	│   Byte stream + SCM_RIGHTS     │
//	├────────────────────────────────┤
//	│   AF_UNIX SOCK_STREAM          │
//	└────────────────────────────────┘
//
// Descriptors travel with the first byte of the payload that references
// them. Received descriptors are owned by the caller.
package transport
