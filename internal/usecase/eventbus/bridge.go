package eventbus

import (
	"context"

	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
)

// ForwardStore republishes every store update on bus: commits as
// EventStateCommitted and log clears as EventLogsCleared. Publish never
// blocks, so it is safe to call from the store's notification path.
// The returned function stops forwarding.
func ForwardStore(store *projection.Store, bus domain.EventBus) func() {
	return store.Subscribe(func(u projection.Update) {
		if u.LogsCleared {
			bus.Publish(context.Background(), domain.NewEvent(domain.EventLogsCleared, "", domain.StateCommittedPayload{
				Seq:        u.Seq,
				Projection: u.Projection,
			}))
			return
		}
		bus.Publish(context.Background(), domain.NewEvent(domain.EventStateCommitted, "", domain.StateCommittedPayload{
			Seq:        u.Seq,
			Projection: u.Projection,
			Appended:   u.Appended,
		}))
	})
}
