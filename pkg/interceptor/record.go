// Kunhua Huang 2026

package interceptor

import (
	"context"

	"github.com/ecstasoy/sockharness/pkg/registry"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

var stepStates = map[transport.StepName]registry.State{
	transport.StepSocket:  registry.StateCreated,
	transport.StepBind:    registry.StateBound,
	transport.StepListen:  registry.StateListening,
	transport.StepAccept:  registry.StateAccepted,
	transport.StepRecv:    registry.StateReceived,
	transport.StepConnect: registry.StateConnected,
	transport.StepSend:    registry.StateSent,
	transport.StepClose:   registry.StateClosed,
}

// Record publishes the state reached by each step of one role instance.
// Registry failures never fail the step; they go to onError.
func Record(reg registry.Registry, instance *registry.RoleInstance, onError func(error)) transport.Interceptor {
	if onError == nil {
		onError = func(error) {}
	}

	return func(ctx context.Context, step *transport.Step, invoker transport.Invoker) error {
		err := invoker(ctx, step)

		if reg == nil || instance == nil {
			return err
		}
		// A failed role stays failed, even through the closes that follow.
		if instance.State.Terminal() {
			return err
		}

		switch state, ok := stepStates[step.Name]; {
		case err != nil:
			instance.State = registry.StateFailed
			instance.Error = err.Error()
		case ok:
			instance.State = state
		default:
			return err
		}

		if uerr := reg.Update(ctx, instance); uerr != nil {
			onError(uerr)
		}

		return err
	}
}
