package realtime

import "time"

// Security/performance defaults. Each can be overridden through Config.
const (
	// Max bytes per websocket frame read (hard limit).
	defaultMaxFrameBytes = 64 << 10 // 64 KiB

	defaultSendQueueSize = 256
	minSendQueueSize     = 32

	defaultWriteTimeout = 5 * time.Second
	defaultReadIdle     = 2 * time.Minute
	closeGrace          = 1 * time.Second

	defaultHeartbeatInterval = 25 * time.Second
	defaultHeartbeatTimeout  = 5 * time.Second
	maxPingFailures          = 3

	// Per-connection rate limits (events per window).
	defaultRateLimitEvents = 120
	defaultRateLimitWindow = 10 * time.Second

	// Striped locks serializing append+broadcast per conversation.
	sendStripes = 64
)
