// Package backoff converts errors into retries with random
// exponential delay, optionally bounded by a maximum attempt count. Adapted from
// dedis/tlc/go/lib/backoff, which retries forever; rcsfs only ever
// applies this to a single local syscall (a copy interrupted by
// EINTR), so Config additionally supports a MaxAttempts bound — an
// unbounded local retry would just spin forever on a persistent
// failure instead of surfacing it.
package backoff

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// Retry calls try repeatedly, with the default configuration, until it
// returns a nil error or ctx is done. The default configuration sets no
// attempt limit.
func Retry(ctx context.Context, try func() error) error {
	return Config{}.Retry(ctx, try)
}

// Config holds exponential-backoff retry parameters.
type Config struct {
	Report      func(error) error // called to report each failed attempt; nil uses log.Println
	MaxWait     time.Duration     // ceiling on the backoff delay
	MaxAttempts int               // 0 means unlimited, matching the teacher's default

	mayGrow struct{} // keep Config easy to extend without breaking callers
}

func defaultReport(err error) error {
	log.Println(err.Error())
	return nil
}

// Retry calls try repeatedly until it succeeds, the context is
// cancelled, the reporter aborts the loop, or MaxAttempts is reached.
func (c Config) Retry(ctx context.Context, try func() error) error {
	if c.Report == nil {
		c.Report = defaultReport
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	backoffDur := time.Duration(1)
	for attempt := 1; ; attempt++ {
		before := time.Now()
		err := try()
		if err == nil {
			return nil
		}
		elapsed := time.Since(before)

		if c.MaxAttempts > 0 && attempt >= c.MaxAttempts {
			return err
		}

		if reportErr := c.Report(err); reportErr != nil {
			return reportErr
		}

		if backoffDur <= elapsed {
			backoffDur = elapsed + 1
		}
		backoffDur += time.Duration(rand.Int63n(int64(backoffDur)))
		if c.MaxWait > 0 && backoffDur > c.MaxWait {
			backoffDur = c.MaxWait
		}

		t := time.NewTimer(backoffDur)
		select {
		case <-t.C:
			continue
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
