// Package types holds the data model shared across every internal package:
// sessions, conversation entries, providers, injection sources, and the
// security policy types resolved for each injection. It has no internal
// imports so every other package can depend on it without cycles.
package types
