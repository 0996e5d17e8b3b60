package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/broady/shapeclient"
)

// Logging logs the start and end of each call using slog, including
// duration, attempt count and error.
type Logging struct {
	shapeclient.NopInterceptor
	logger *slog.Logger
	starts calls[time.Time]
}

// NewLogging creates a logging interceptor. If logger is nil,
// slog.Default() is used.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) ReadBeforeExecution(ctx context.Context, in *shapeclient.InputContext) error {
	l.starts.start(in, time.Now())
	l.logger.InfoContext(ctx, "call started",
		slog.String("service", in.Service.Name()),
		slog.String("operation", in.Operation.Name),
	)
	return nil
}

func (l *Logging) ReadAfterAttempt(ctx context.Context, out *shapeclient.OutputContext) error {
	if out.Err != nil {
		l.logger.DebugContext(ctx, "attempt failed",
			slog.String("operation", out.Operation.Name),
			slog.Int("attempt", out.Attempt),
			slog.Any("error", out.Err),
		)
	}
	return nil
}

func (l *Logging) ReadAfterExecution(ctx context.Context, out *shapeclient.OutputContext) error {
	start, _ := l.starts.finish(out.InputContext)
	duration := time.Since(start)

	if out.Err != nil {
		l.logger.ErrorContext(ctx, "call failed",
			slog.String("operation", out.Operation.Name),
			slog.Int("attempts", out.Attempt),
			slog.Duration("duration", duration),
			slog.Any("error", out.Err),
		)
	} else {
		l.logger.InfoContext(ctx, "call completed",
			slog.String("operation", out.Operation.Name),
			slog.Int("attempts", out.Attempt),
			slog.Duration("duration", duration),
		)
	}
	return nil
}
