// Package saga runs long-lived trigger watchers.
package saga

import (
	"context"
)

// TakeLatest runs fn for every value received on triggers, keeping at most
// one instance alive. A new trigger cancels the context of the in-flight
// instance and waits for it to return before the next one starts, so a
// superseded instance can never interleave its output with its successor.
//
// TakeLatest returns ctx.Err() once ctx is done, or nil when triggers is
// closed. In both cases it returns only after the last instance has exited.
func TakeLatest[T any](ctx context.Context, triggers <-chan T, fn func(ctx context.Context, trigger T)) error {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	stop := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
		cancel, done = nil, nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trigger, ok := <-triggers:
			if !ok {
				if done != nil {
					<-done
				}
				return nil
			}
			stop()

			var instanceCtx context.Context
			instanceCtx, cancel = context.WithCancel(ctx)
			done = make(chan struct{})
			go func(ctx context.Context, done chan struct{}) {
				defer close(done)
				fn(ctx, trigger)
			}(instanceCtx, done)
		}
	}
}
