// Package budget computes the resource limits of a partition run and
// enforces them through the interrupt flag.
package budget

import (
	"fmt"
	"time"
)

// Limits is a set of optional resource limits. A value <= 0 means the
// limit is absent.
type Limits struct {
	Wall  time.Duration
	CPU   time.Duration
	Steps int64
}

// IsZero reports whether no limit is set.
func (l Limits) IsZero() bool {
	return l.Wall <= 0 && l.CPU <= 0 && l.Steps <= 0
}

func (l Limits) String() string {
	return fmt.Sprintf("wall=%s cpu=%s steps=%s", dur(l.Wall), dur(l.CPU), count(l.Steps))
}

func dur(d time.Duration) string {
	if d <= 0 {
		return "inf"
	}
	return d.String()
}

func count(n int64) string {
	if n <= 0 {
		return "inf"
	}
	return fmt.Sprint(n)
}

// Budget holds the partition-level and property-level limits together
// with the escalation scale applied to both.
type Budget struct {
	Partition Limits
	Property  Limits
	// Scale multiplies every limit; zero means 1.
	Scale float64
}

// Effective returns the limits for a partition of n properties. A
// partition of exactly one property uses each property limit that is set
// and falls back to the partition limit otherwise.
func (b Budget) Effective(n int) Limits {
	l := b.Partition
	if n == 1 {
		if b.Property.Wall > 0 {
			l.Wall = b.Property.Wall
		}
		if b.Property.CPU > 0 {
			l.CPU = b.Property.CPU
		}
		if b.Property.Steps > 0 {
			l.Steps = b.Property.Steps
		}
	}
	s := b.scale()
	if l.Wall > 0 {
		l.Wall = time.Duration(float64(l.Wall) * s)
	}
	if l.CPU > 0 {
		l.CPU = time.Duration(float64(l.CPU) * s)
	}
	if l.Steps > 0 {
		l.Steps = int64(float64(l.Steps) * s)
	}
	return l
}

func (b Budget) scale() float64 {
	if b.Scale <= 0 {
		return 1
	}
	return b.Scale
}

// Escalate returns b with its scale multiplied by factor.
func (b Budget) Escalate(factor float64) Budget {
	b.Scale = b.scale() * factor
	return b
}

// Unlimited reports whether a partition of n properties runs without any
// limit.
func (b Budget) Unlimited(n int) bool {
	return b.Effective(n).IsZero()
}
