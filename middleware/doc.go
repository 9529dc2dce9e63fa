// Package middleware gates net/http handlers with the account-lifecycle
// overlay.
//
// [Guard] resolves the caller, refuses hidden and suspended identities and
// stores the [Caller] in the request context. [RequireAdmin] additionally
// limits a route to the admin roles of the engine configuration.
//
// Callers are resolved by a [Resolver]: [BearerJWT] verifies session tokens,
// [FromSession] uses the engine's own session for single-user processes.
package middleware
