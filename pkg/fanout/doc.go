// Package fanout dispatches the chunks of one logical request concurrently
// against the data proxy.
//
// The proxy rejects oversized calls, so a request is partitioned into many
// small chunks first. This package runs those chunks through a bounded worker
// pool, launching them in order with a fixed pause between launches.
//
// Example usage:
//
//	cfg := fanout.DefaultConfig()
//	d, err := fanout.New(transport, endpoint, cfg)
//	responses, err := d.Dispatch(ctx, wire.DirectionDatagrid, payloads)
//
// The dispatcher:
//   - Launches at most MaxConcurrency calls at once (default 12)
//   - Waits LaunchInterval between launches (default 250ms)
//   - Retries transient network failures under one RetryPolicy, forever by default
//   - Counts responses without data markers as empty contributions
//   - Stops launching on the first terminal error and returns only that error
//   - Recovers worker panics as dataerr.KindThread
//
// A chunk that keeps failing transiently retries until the caller's context
// ends; bound a dispatch with a deadline when that matters.
package fanout
