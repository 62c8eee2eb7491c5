// Package identity is Counsel's user directory.
//
// It owns the canonical User record (name, email, role, lawyer specialization,
// profile) and the persistence boundary used by auth, the chat history
// enrichment path and the connection workflow. Password hashes are opaque here;
// hashing lives in cmd/security/password.
package identity
