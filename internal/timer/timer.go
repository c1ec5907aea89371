// Package timer provides a named in-memory timer service. Timers are
// deliberately not persisted; a periodic sweep over durable state is the
// recovery path after a restart.
package timer

import (
	"sync"
	"time"

	"github.com/tabvault/tabvault-server/internal/logger"
)

// Service schedules named callbacks. Arming a name that is already armed
// replaces the previous timer, so reschedules never double-fire.
type Service struct {
	log     *logger.Logger
	oneShot map[string]*time.Timer
	tickers map[string]chan struct{}
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

// New creates an empty timer service.
func New(log *logger.Logger) *Service {
	return &Service{
		log:     log,
		oneShot: make(map[string]*time.Timer),
		tickers: make(map[string]chan struct{}),
	}
}

// Arm schedules fn to run once at the given time. If at is in the past the
// callback fires immediately on the timer goroutine. An existing timer with
// the same name is replaced.
func (s *Service) Arm(name string, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.cancelLocked(name)

	d := time.Until(at)
	if d < 0 {
		d = 0
	}

	// The callback compares against its own timer, not just the name: a
	// re-Arm that raced the firing must not have its fresh registration
	// consumed by the stale callback.
	var own *time.Timer
	own = time.AfterFunc(d, func() {
		s.mu.Lock()
		registered, ok := s.oneShot[name]
		run := ok && registered == own && !s.stopped
		if run {
			delete(s.oneShot, name)
			s.wg.Add(1)
		}
		s.mu.Unlock()

		if !run {
			return
		}
		defer s.wg.Done()
		fn()
	})
	s.oneShot[name] = own
}

// ArmPeriodic runs fn every interval until the name is cancelled or the
// service stops. An existing periodic timer with the same name is replaced.
func (s *Service) ArmPeriodic(name string, every time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.cancelLocked(name)

	done := make(chan struct{})
	s.tickers[name] = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
}

// Cancel stops the timer registered under name, if any. Cancelling an
// unknown name is a no-op.
func (s *Service) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(name)
}

func (s *Service) cancelLocked(name string) {
	if t, ok := s.oneShot[name]; ok {
		t.Stop()
		delete(s.oneShot, name)
	}
	if done, ok := s.tickers[name]; ok {
		close(done)
		delete(s.tickers, name)
	}
}

// Armed reports whether a timer is currently registered under name.
func (s *Service) Armed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, one := s.oneShot[name]
	_, per := s.tickers[name]
	return one || per
}

// Stop cancels every registered timer, rejects further arming, and waits
// for callbacks already in flight to return. Callers may tear down shared
// state once Stop returns.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true

	for name, t := range s.oneShot {
		t.Stop()
		delete(s.oneShot, name)
	}
	for name, done := range s.tickers {
		close(done)
		delete(s.tickers, name)
	}
	s.mu.Unlock()

	// In-flight callbacks take the mutex themselves, so the wait happens
	// outside it.
	s.wg.Wait()

	if s.log != nil {
		s.log.Debug("timer service stopped")
	}
}
