package ports

import "exocompare/domain/run"

// EventBroadcaster fans pipeline progress events out to listeners. Broadcast
// must not block the pipeline.
type EventBroadcaster interface {
	Broadcast(event run.Event)
}
