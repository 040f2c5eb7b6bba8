// Package middleware is the incoming/outgoing hook chain from
// spec.md §4.5: a priority-ordered registry, lowest runs first, with up
// to two hooks per entry. A hook may rewrite the payload or set
// prevented=true to short-circuit the injection; a hook that panics or
// errors is treated as "did nothing" and logged, never aborting the
// chain.
//
// Grounded on the shape of the teacher's permission/hook-style
// check-then-continue pattern (internal/permission), generalized from a
// single approval gate into an ordered chain of rewrite-or-veto steps.
package middleware
