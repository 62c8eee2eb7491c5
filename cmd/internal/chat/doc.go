// Package chat owns direct-message conversations: the conversation key, the
// Message record, its stores and the Messages service shared by the REST
// history endpoint and the realtime engine.
//
// Messages are immutable once appended. History is ordered by createdAt with
// the ULID id breaking ties.
package chat
