// Kunhua Huang 2026

package delay

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PayloadBase is what the client sends when no suffix token is given.
const PayloadBase = "test"

var ErrInvalidDelay = errors.New("invalid delay")

// maxSeconds is the longest delay a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Args is the positional command line of the harness:
//
//	[server-pre-bind [client-pre-connect [client-pre-send [token]]]]
//
// Delays are whole seconds. Presence is ordinal, there are no flags.
type Args struct {
	Plan     Plan
	Token    string
	HasToken bool
}

func ParseArgs(args []string) (Args, error) {
	var parsed Args

	targets := []*time.Duration{
		&parsed.Plan.ServerPreBind,
		&parsed.Plan.ClientPreConnect,
		&parsed.Plan.ClientPreSend,
	}

	for i, target := range targets {
		if i >= len(args) {
			return parsed, nil
		}

		d, err := parseSeconds(args[i])
		if err != nil {
			return Args{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		*target = d
	}

	// An empty fourth argument still counts and yields "test ".
	if len(args) > len(targets) {
		parsed.Token = args[len(targets)]
		parsed.HasToken = true
	}

	return parsed, nil
}

func parseSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q: not an integer", ErrInvalidDelay, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w %q: negative", ErrInvalidDelay, s)
	}
	if int64(n) > maxSeconds {
		return 0, fmt.Errorf("%w %q: out of range", ErrInvalidDelay, s)
	}
	return time.Duration(n) * time.Second, nil
}

// Payload is "test", or "test <token>" when a token was supplied.
func (a Args) Payload() []byte {
	if !a.HasToken {
		return []byte(PayloadBase)
	}
	return []byte(PayloadBase + " " + a.Token)
}
