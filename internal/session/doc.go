// Package session implements the runtime state machine a role uses to
// execute its projected local protocol against a transport.
//
// A Session is a cursor over the local protocol tree. Every operation
// first asserts that the cursor's current node matches the operation's
// required shape, failing with PROTOCOL_MISMATCH otherwise, then
// consumes the session value and returns a successor positioned at the
// continuation. Consumed values fail loudly on reuse, which gives
// linear usage in a language without move semantics.
//
// A session suspends only inside transport I/O (Send, Receive, Select,
// Offer). Operations on one session occur exactly in the order the
// local protocol prescribes; cross-role ordering is whatever the
// protocol implies through message dependencies.
package session
