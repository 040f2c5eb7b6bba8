// Package provider implements the registry and resolver described in
// spec.md §4.7: named ProviderDescriptors with fallback chains, a
// credential store keyed by provider id, health-as-hint state, and
// concrete Provider/ProviderStream clients for Anthropic, OpenAI, and
// Bedrock.
//
// Health is a hint, never a correctness boundary: ResolveProvider returns
// the first provider in the fallback chain that is marked available and
// not excluded, without calling it. When that provider fails within an
// injection, the executor calls ResolveProvider again with the failed id
// excluded; neither of them flips its Available flag, which changes only
// through CheckHealth or SetAvailable.
//
// Grounded on the teacher's internal/provider package: Registry's
// Register/Get/List shape, ParseModelString's "provider/model" split,
// and the env-var auto-registration fallback in InitializeProviders are
// all kept, generalized from Eino's ToolCallingChatModel to this
// module's plain streaming Provider/ProviderStream contract.
package provider
