package engine

import (
	"context"
	"time"
)

// PingResult is reported once per repetition of [Engine.Ping].
type PingResult struct {
	Seq      int
	Bytes    int
	Elapsed  time.Duration
	TimedOut bool
	Err      error
}

// Ping repeats a Standard UDP exchange once per second until ctx is
// cancelled, invoking onResult after each attempt, grounded on
// SocketUdpPing::sendMsg's sleep(1)-between-repetitions loop in the
// original client; unlike the original, cancellation is via ctx rather
// than a process-wide signal flag.
func (e *Engine) Ping(ctx context.Context, onResult func(PingResult)) {
	for seq := 0; ; seq++ {
		err := e.Send(ctx)
		result := PingResult{
			Seq:      seq,
			Elapsed:  e.Elapsed(),
			TimedOut: e.IsTimeout(),
			Err:      err,
		}
		if err == nil && e.lastResponse != nil {
			result.Bytes = e.ResponseLength()
		}
		if onResult != nil {
			onResult(result)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
