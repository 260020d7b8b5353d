// Kunhua Huang 2026

package interceptor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ecstasoy/sockharness/pkg/transport"
)

// Recovery turns a panic inside a step into an error so the role still
// unwinds through its deferred closes.
func Recovery() transport.Interceptor {
	return func(ctx context.Context, step *transport.Step, invoker transport.Invoker) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				err = fmt.Errorf("%s: panic recovered: %v\nstack:\n%s", step, r, stack)
			}
		}()

		return invoker(ctx, step)
	}
}
