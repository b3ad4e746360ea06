package budget

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gnolang/cegar/internal/interrupt"
)

func TestEffective(t *testing.T) {
	t.Parallel()
	b := Budget{
		Partition: Limits{Wall: 10 * time.Second, CPU: 8 * time.Second, Steps: 1000},
		Property:  Limits{Wall: 2 * time.Second, CPU: -1},
	}
	tests := []struct {
		name string
		b    Budget
		n    int
		want Limits
	}{
		{"single property prefers property limits", b, 1, Limits{Wall: 2 * time.Second, CPU: 8 * time.Second, Steps: 1000}},
		{"partition limits for many", b, 3, b.Partition},
		{"escalated", b.Escalate(2), 3, Limits{Wall: 20 * time.Second, CPU: 16 * time.Second, Steps: 2000}},
		{"escalated twice", b.Escalate(2).Escalate(2), 1, Limits{Wall: 8 * time.Second, CPU: 32 * time.Second, Steps: 4000}},
		{"infinite stays infinite", Budget{Partition: Limits{Wall: -1}}.Escalate(2), 2, Limits{Wall: -1}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.b.Effective(tt.n))
		})
	}
}

func TestUnlimited(t *testing.T) {
	t.Parallel()
	assert.True(t, Budget{}.Unlimited(2))
	assert.True(t, Budget{Property: Limits{Wall: time.Second}}.Unlimited(2))
	assert.False(t, Budget{Property: Limits{Wall: time.Second}}.Unlimited(1))
	assert.Equal(t, "wall=1s cpu=inf steps=inf", Limits{Wall: time.Second}.String())
}

func TestWatchWallTime(t *testing.T) {
	t.Parallel()
	flag := interrupt.New(0)
	stop := Watch(flag, Limits{Wall: 20 * time.Millisecond})
	defer stop()

	assert.Eventually(t, flag.Raised, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, interrupt.ReasonWallTime, flag.Reason())
}

func TestWatchCPUTime(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "js" || runtime.GOOS == "wasip1" {
		t.Skip("process cpu time not available")
	}
	t.Parallel()
	flag := interrupt.New(0)
	stop := Watch(flag, Limits{CPU: 20 * time.Millisecond})
	defer stop()

	deadline := time.Now().Add(10 * time.Second)
	for !flag.Raised() && time.Now().Before(deadline) {
	}
	assert.Equal(t, interrupt.ReasonCPUTime, flag.Reason())
}

func TestWatchStop(t *testing.T) {
	t.Parallel()
	flag := interrupt.New(0)
	stop := Watch(flag, Limits{Wall: time.Hour})
	stop()
	stop()
	assert.False(t, flag.Raised())

	Watch(flag, Limits{})()
	assert.False(t, flag.Raised())
}
