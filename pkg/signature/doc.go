// Package signature implements the bus type-signature grammar.
//
// A signature is a compact string of type codes describing the wire shape of
// a value. It drives both the encoder and the decoder in package variant.
//
// # Grammar
//
// Basic types are single characters:
//
//	y  byte          b  boolean       n  int16        q  uint16
//	i  int32         u  uint32        x  int64        t  uint64
//	d  double        s  string        o  object path  g  signature
//	h  unix fd index
//
// Container types:
//
//	v        variant (value carrying its own signature)
//	aT       array of T
//	(T1T2…)  struct with one or more fields
//	a{KV}    dictionary: array of dict-entries with a basic key K
//
// # Limits
//
// Signatures are at most 255 bytes long. Arrays and structs may each nest at
// most 32 levels deep; Parse rejects deeper signatures with
// ErrMaxDepthExceeded.
package signature
