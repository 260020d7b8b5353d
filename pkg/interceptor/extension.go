// Kunhua Huang 2026

package interceptor

import (
	"context"
	"fmt"

	"github.com/ecstasoy/sockharness/pkg/extension"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

// Extension reports every step to the loaded extension module, once on
// entry and once on exit. A negative entry result aborts the step before
// the socket call runs. Positive results are ignored: the call is always
// performed for real.
func Extension(d *extension.Dispatcher, h extension.Handle) transport.Interceptor {
	return func(ctx context.Context, step *transport.Step, invoker transport.Invoker) error {
		if d == nil || !d.Loaded() {
			return invoker(ctx, step)
		}

		if res := d.Dispatch(h, extension.SyscallEnterStart, string(step.Name), step.Role.String()); res < 0 {
			return fmt.Errorf("%s: %w (status %d)", step, extension.ErrRefused, res)
		}

		err := invoker(ctx, step)

		d.Dispatch(h, extension.SyscallExitEnd, string(step.Name), step.Role.String())

		return err
	}
}
