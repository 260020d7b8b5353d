// Kunhua Huang 2026

package delay

import (
	"fmt"
	"time"
)

// Step names the pause points a Plan can delay.
type Step int

const (
	BeforeBind Step = iota
	BeforeConnect
	BeforeSend
)

func (s Step) String() string {
	switch s {
	case BeforeBind:
		return "before-bind"
	case BeforeConnect:
		return "before-connect"
	case BeforeSend:
		return "before-send"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Plan holds the optional pauses used to force an interleaving between the
// two roles. A zero duration means no pause.
type Plan struct {
	ServerPreBind    time.Duration
	ClientPreConnect time.Duration
	ClientPreSend    time.Duration
}

func (p Plan) For(step Step) time.Duration {
	switch step {
	case BeforeBind:
		return p.ServerPreBind
	case BeforeConnect:
		return p.ClientPreConnect
	case BeforeSend:
		return p.ClientPreSend
	default:
		return 0
	}
}

// Apply sleeps for the duration mapped to step and returns it.
func (p Plan) Apply(s Sleeper, step Step) time.Duration {
	d := p.For(step)
	if d > 0 {
		s.Sleep(d)
	}
	return d
}

// Sleeper pauses the calling goroutine. It is kept separate from time.Sleep
// so tests can observe the pauses without waiting for them.
type Sleeper interface {
	Sleep(d time.Duration)
}

type SleeperFunc func(d time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) {
	f(d)
}

// RealSleeper blocks for the full duration using time.Sleep.
var RealSleeper Sleeper = SleeperFunc(time.Sleep)
