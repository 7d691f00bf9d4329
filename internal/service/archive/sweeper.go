package archive

import (
	"context"
	"sync"
	"time"
)

// sweeper runs fn on a fixed interval until stopped. A zero interval
// disables the timer; fn can still be invoked directly.
type sweeper struct {
	interval time.Duration
	fn       func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func startSweeper(interval time.Duration, fn func()) *sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	s := &sweeper{
		interval: interval,
		fn:       fn,
		cancel:   cancel,
	}
	if interval <= 0 {
		return s
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return s
}

func (s *sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fn()
		}
	}
}

// Stop cancels the timer and waits for a running sweep to finish.
// Must not be called from fn.
func (s *sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}
