package realtime

import "counsel/cmd/identity/ids"

// NewConnID returns a ULID used as websocket connection id.
func NewConnID() string { return ids.Make() }

// NewEnvelopeID returns a ULID used as envelope id.
// ULIDs sort by time, which keeps server-originated envelopes traceable in logs.
func NewEnvelopeID() string { return ids.Make() }
