// Kunhua Huang 2026

package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ecstasoy/sockharness/pkg/transport"
)

// Logger is satisfied by *zap.SugaredLogger.
type Logger interface {
	Infof(template string, args ...interface{})
}

// Logging traces every step at info level, failures included. A failed
// role is reported once by its caller, so at the default level the trace
// stays silent.

func Logging(logger Logger) transport.Interceptor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return func(ctx context.Context, step *transport.Step, invoker transport.Invoker) error {
		start := time.Now()

		logger.Infof("→ %s: [%s]", step, step.Endpoint)

		err := invoker(ctx, step)

		duration := time.Since(start)

		switch {
		case err != nil:
			logger.Infof("✗ %s: failed in %v: %v", step, duration, err)
		case step.Name == transport.StepDelay:
			logger.Infof("✓ %s: slept %v", step, step.Delay)
		case step.Name == transport.StepRecv || step.Name == transport.StepSend:
			logger.Infof("✓ %s: %d bytes in %v", step, step.Bytes, duration)
		default:
			logger.Infof("✓ %s: succeeded in %v", step, duration)
		}

		return err
	}
}
