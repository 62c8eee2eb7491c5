// Package session issues and resolves Counsel access tokens.
//
// Tokens are HS256 JWTs carrying the user id and role. A request presents one
// either as the "token" cookie (set by login) or as an Authorization: Bearer
// header; the cookie wins when both are present. Resolution is side-effect
// free and every failure collapses to ErrUnauthorized for callers.
//
// The same Resolver gates REST handlers (RequireAuth) and the realtime
// handshake.
package session
