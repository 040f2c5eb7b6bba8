// Package security is the capability-based policy engine every injection
// passes through before context assembly. It resolves a source's trust
// level and effective capabilities, checks session access and tool
// access, and enforces the env-override > stored-config > compiled-default
// precedence for the global enforcement mode.
//
// Grounded on the shape of the teacher's internal/permission package (an
// enum-driven check with a dedicated rejection sentinel and an async
// approval channel for interactive confirmation); the trust-level and
// dotted-capability-prefix machinery itself has no teacher analogue and
// is new, built directly from the data model.
package security
