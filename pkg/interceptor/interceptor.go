// Kunhua Huang 2026

package interceptor

import (
	"context"

	"github.com/ecstasoy/sockharness/pkg/transport"
)

type Chain struct {
	interceptors []transport.Interceptor
}

func NewChain(interceptor ...transport.Interceptor) *Chain {
	return &Chain{interceptors: interceptor}
}

// Intercept runs invoker through the chain. The first interceptor added is
// the outermost one.
func (ic *Chain) Intercept(ctx context.Context, step *transport.Step, invoker transport.Invoker) error {
	if len(ic.interceptors) == 0 {
		return invoker(ctx, step)
	}

	return ic.buildChain(invoker)(ctx, step)
}

func (ic *Chain) buildChain(invoker transport.Invoker) transport.Invoker {
	for i := len(ic.interceptors) - 1; i >= 0; i-- {
		next := invoker
		interceptor := ic.interceptors[i]

		invoker = func(ctx context.Context, step *transport.Step) error {
			return interceptor(ctx, step, next)
		}
	}

	return invoker
}
