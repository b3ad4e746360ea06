package budget

import (
	"sync"
	"time"

	"github.com/gnolang/cegar/internal/interrupt"
)

// cpuPoll is how often the watchdog samples process CPU time.
const cpuPoll = 10 * time.Millisecond

// Watch starts a watchdog that raises flag once the wall or cpu limit of l
// is spent. The step limit is enforced by the flag itself. The returned
// function stops the watchdog and waits for it to exit.
func Watch(flag *interrupt.Flag, l Limits) (stop func()) {
	if l.Wall <= 0 && l.CPU <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watch(flag, l, done)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func watch(flag *interrupt.Flag, l Limits, done <-chan struct{}) {
	var wall <-chan time.Time
	if l.Wall > 0 {
		t := time.NewTimer(l.Wall)
		defer t.Stop()
		wall = t.C
	}

	var poll <-chan time.Time
	var cpuStart time.Duration
	if l.CPU > 0 {
		start, err := processCPUTime()
		if err == nil {
			cpuStart = start
			t := time.NewTicker(cpuPoll)
			defer t.Stop()
			poll = t.C
		}
	}

	for {
		select {
		case <-done:
			return
		case <-wall:
			flag.Raise(interrupt.ReasonWallTime)
			return
		case <-poll:
			now, err := processCPUTime()
			if err == nil && now-cpuStart >= l.CPU {
				flag.Raise(interrupt.ReasonCPUTime)
				return
			}
		}
	}
}
