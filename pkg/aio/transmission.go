package aio

import (
	"time"
)

// Transmission paces the driver wait: how many completions to wait for and
// how long. Up after a saturated wait, Down after an idle one, Match to
// jump to the step nearest a known batch size.
type Transmission interface {
	Up() (uint32, time.Duration)
	Down() (uint32, time.Duration)
	Match(n uint32) (uint32, time.Duration)
}

type Curve []struct {
	N       uint32
	Timeout time.Duration
}

var defaultCurve = Curve{
	{1, 500 * time.Microsecond},
	{8, 2 * time.Millisecond},
	{16, 10 * time.Millisecond},
	{32, 50 * time.Millisecond},
}

func NewCurveTransmission(curve Curve) Transmission {
	if len(curve) == 0 {
		curve = defaultCurve
	}
	steps := make([]waitNTime, 0, len(curve))
	for _, t := range curve {
		if t.N < 1 || t.Timeout < 1 {
			continue
		}
		steps = append(steps, waitNTime{n: t.N, timeout: t.Timeout})
	}
	if len(steps) == 0 {
		steps = append(steps, waitNTime{n: 1, timeout: 500 * time.Microsecond})
	}
	return &CurveTransmission{
		curve: steps,
		size:  len(steps),
	}
}

type waitNTime struct {
	n       uint32
	timeout time.Duration
}

type CurveTransmission struct {
	curve []waitNTime
	size  int
	idx   int
}

func (tran *CurveTransmission) Up() (uint32, time.Duration) {
	if tran.idx < tran.size-1 {
		tran.idx++
	}
	return tran.curve[tran.idx].n, tran.curve[tran.idx].timeout
}

func (tran *CurveTransmission) Down() (uint32, time.Duration) {
	if tran.idx > 0 {
		tran.idx--
	}
	return tran.curve[tran.idx].n, tran.curve[tran.idx].timeout
}

func (tran *CurveTransmission) Match(n uint32) (uint32, time.Duration) {
	if n == 0 || tran.size == 1 {
		tran.idx = 0
		return tran.curve[0].n, tran.curve[0].timeout
	}
	for i := 1; i < tran.size; i++ {
		ln := tran.curve[i-1]
		rn := tran.curve[i]
		if ln.n <= n && n < rn.n {
			tran.idx = i - 1
			return ln.n, ln.timeout
		}
	}
	tran.idx = tran.size - 1
	tail := tran.curve[tran.idx]
	return tail.n, tail.timeout
}
