// Package connections implements the request/accept workflow between users.
//
// A connection is unique per unordered pair of users. Only the recipient of a
// pending request may answer it. Accepted connections back the optional chat
// contact policy (see Service.AreConnected).
package connections
