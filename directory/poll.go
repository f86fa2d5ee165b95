package directory

import (
	"context"
	"time"

	"github.com/btcjoin/receiver/logger"
	"github.com/btcjoin/receiver/threads"

	"github.com/pkg/errors"
)

// OnPayload is called with each non-empty payload the poll loop recovers from the directory.
// Returning a non-nil error stops the loop.
type OnPayload func(ctx context.Context, payload []byte) error

// PollLoop repeatedly GETs the directory at the given interval until onPayload returns an error or
// interrupt is closed; a payload whose handler returns nil does not stop the loop. It is meant to be run as a threads.Thread via
// threads.NewThread, matching the rest of this repo's goroutine lifecycle convention: directory
// polling is the one piece of this system that blocks on the network, so it is the one piece that
// runs as a background thread rather than inline in the receiver's call path.
func PollLoop(client *Client, interval time.Duration, onPayload OnPayload) threads.ThreadInterruptFunction {
	return func(ctx context.Context, interrupt <-chan interface{}) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-interrupt:
				return threads.Interrupted

			case <-ticker.C:
				payload, err := client.Get(ctx)
				if err != nil {
					logger.Warn(ctx, "Directory poll failed : %s", err)
					continue
				}

				if payload == nil {
					continue
				}

				if err := onPayload(ctx, payload); err != nil {
					return errors.Wrap(err, "handle payload")
				}
			}
		}
	}
}
