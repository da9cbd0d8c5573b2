package protocol

// WebSocket event names pushed from server to client.
const (
	EventNotification = "notification"
	EventHealth       = "health"
	EventCron         = "cron"
	EventShutdown     = "shutdown"

	// Cache invalidation events (internal, not forwarded to WS clients).
	EventCacheInvalidate = "cache.invalidate"
)

// Cron event subtypes (in payload.type)
const (
	CronEventFired     = "fired"
	CronEventSucceeded = "succeeded"
	CronEventFailed    = "failed"
)
