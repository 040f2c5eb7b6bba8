// Package config resolves WOPR's base directory and loads the daemon's
// top-level settings: listen address, security enforcement default, and
// provider credential discovery.
//
// # Filesystem layout
//
// Everything WOPR persists lives under a single base directory, resolved
// from the WOPR_HOME environment variable or defaulting to ~/.wopr:
//
//	sessions.json                        name -> conversation id
//	sessions/{name}.md                    session context text
//	sessions/{name}.provider.json         session provider config
//	sessions/{name}.created               creation timestamp (decimal string)
//	sessions/{name}.conversation.jsonl    append-only conversation log
//	security.json                         policy configuration
//	credentials/{provider}.json           per-provider credential record
//	scheduler.json                        persisted schedule state
//	daemon.pid
//	daemon.log
//
// # Environment variable overrides
//
//   - WOPR_HOME — base dir.
//   - WOPR_SECURITY_ENFORCEMENT — off|warn|enforce, overrides the stored
//     enforcement mode for read paths only; never persisted.
//   - Provider credentials fall back to well-known environment variables
//     (ANTHROPIC_API_KEY, OPENAI_API_KEY, ...) when no credential file
//     exists for that provider.
package config
