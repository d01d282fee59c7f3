package engine

import (
	"context"
	"time"

	"github.com/webxcore/webx/pkg/timeutil"
)

// sleeper is the interruptible sleep used for politeness waits (spec.md §5
// "suspension points must be cancellable"), shared with pkg/retry's backoff
// sleeps rather than each caller re-implementing the timer/ctx.Done select.
var sleeper timeutil.Sleeper = timeutil.NewContextSleeper()

func sleepCtx(ctx context.Context, d time.Duration) {
	sleeper.Sleep(ctx, d)
}
