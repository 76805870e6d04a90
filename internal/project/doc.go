// Package project derives local protocols from global protocols
// (projection) and computes complementary local protocols for two-party
// exchanges (duality).
//
// Projection is deterministic: identical inputs always yield
// structurally identical trees. That makes duality usable as an
// independent correctness oracle for two-role choreographies:
// Dual(Project(G, A)) must equal Project(G, B).
package project
