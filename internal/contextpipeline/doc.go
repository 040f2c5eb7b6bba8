// Package contextpipeline assembles the system prompt and context block
// injected alongside every message, per spec.md §4.4: a priority-ordered
// registry of named providers, each optionally restricted by an
// injection-time whitelist, run single-threaded within one assembly so a
// later provider can observe an earlier provider's addition. A provider
// that panics or errors is logged, contributes a warning, and is
// skipped; it never aborts the assembly.
//
// Grounded on the shape of the teacher's internal/session package, which
// assembles session context from multiple sources (project tree,
// recently-edited files, git status) in a fixed order before handing the
// prompt to the provider; this package generalizes that into a named,
// priority-ordered, runtime-editable registry.
package contextpipeline
