// Package ir defines the protocol intermediate representation: global
// choreography trees describing every role's interactions, and local
// protocol trees describing a single role's view after projection.
//
// Trees are owned top-down and contain no structural cycles. Recursion is
// a labeled back-reference: a Var node names an enclosing Rec node, and
// resolution is a label lookup, never pointer aliasing.
//
// The package also provides deterministic canonical JSON serialization
// for both tree families and content-addressed protocol hashing built on
// it. Canonical bytes are the ONLY serialization used for identity.
package ir
