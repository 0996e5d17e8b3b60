package shapeclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/broady/shapeclient/apierror"
	"github.com/broady/shapeclient/transport"
)

// RetryToken tracks one call through the retry loop.
type RetryToken interface {
	// Attempt is the 1-based number of the attempt the token permits.
	Attempt() int

	// RetryDelay is how long to wait before that attempt.
	RetryDelay() time.Duration
}

// RetryStrategy decides whether and when failed attempts are retried.
// Implementations must be safe for concurrent use.
type RetryStrategy interface {
	// AcquireInitialRetryToken is called once per call before the first
	// attempt. scope identifies the operation.
	AcquireInitialRetryToken(ctx context.Context, scope string) (RetryToken, error)

	// RefreshRetryToken is called after a failed attempt. It returns a
	// token for the next attempt, or an error to stop retrying.
	RefreshRetryToken(token RetryToken, err error) (RetryToken, error)

	// RecordSuccess is called once when an attempt succeeds.
	RecordSuccess(token RetryToken)
}

// Retry modes accepted by NewRetryStrategy.
const (
	RetryModeStandard = "standard"
	RetryModeSimple   = "simple"
	RetryModeOff      = "off"
)

// NewRetryStrategy returns the strategy for mode with the given attempt
// budget.
func NewRetryStrategy(mode string, maxAttempts int) (RetryStrategy, error) {
	switch mode {
	case RetryModeStandard, "":
		s := NewStandardRetryStrategy()
		if maxAttempts > 0 {
			s.MaxAttempts = maxAttempts
		}
		return s, nil
	case RetryModeSimple:
		return &SimpleRetryStrategy{MaxAttempts: maxAttempts}, nil
	case RetryModeOff:
		return &SimpleRetryStrategy{MaxAttempts: 1}, nil
	default:
		return nil, fmt.Errorf("unknown retry mode %q", mode)
	}
}

// IsRetryable classifies an attempt error. Transport failures are
// retryable; cancellation and errors from a request that cannot be
// replayed are not. API errors are classified by apierror.Classify.
func IsRetryable(err error) apierror.RetryInfo {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, transport.ErrNotRewindable):
		return apierror.RetryInfo{}
	}
	if _, ok := apierror.As(err); ok {
		return apierror.Classify(err)
	}
	var sendErr *transport.SendError
	if errors.As(err, &sendErr) {
		return apierror.RetryInfo{Retryable: true}
	}
	return apierror.RetryInfo{}
}

func isTimeout(err error) bool {
	var sendErr *transport.SendError
	return errors.As(err, &sendErr) && sendErr.Timeout()
}

type attemptToken struct {
	attempt int
	delay   time.Duration

	// cost is the quota paid for this attempt.
	cost int
	bo   *backoff.ExponentialBackOff
}

func (t *attemptToken) Attempt() int              { return t.attempt }
func (t *attemptToken) RetryDelay() time.Duration { return t.delay }

// SimpleRetryStrategy retries retryable errors up to MaxAttempts total
// attempts. Backoff computes the delay before an attempt; nil means no
// delay.
type SimpleRetryStrategy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

func (s *SimpleRetryStrategy) AcquireInitialRetryToken(context.Context, string) (RetryToken, error) {
	return &attemptToken{attempt: 1}, nil
}

func (s *SimpleRetryStrategy) RefreshRetryToken(token RetryToken, err error) (RetryToken, error) {
	info := IsRetryable(err)
	if !info.Retryable {
		return nil, err
	}
	next := token.Attempt() + 1
	if next > max(s.MaxAttempts, 1) {
		return nil, ErrMaxAttempts
	}
	t := &attemptToken{attempt: next, delay: info.RetryAfter}
	if t.delay == 0 && s.Backoff != nil {
		t.delay = s.Backoff(next)
	}
	return t, nil
}

func (s *SimpleRetryStrategy) RecordSuccess(RetryToken) {}

// Defaults for StandardRetryStrategy.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryQuota     = 500
	DefaultRetryCost      = 5
	DefaultTimeoutCost    = 10
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 20 * time.Second

	// noRetryIncrement is returned to the quota by a first-attempt success.
	noRetryIncrement = 1
)

// StandardRetryStrategy retries with exponential backoff and full jitter,
// and charges every retry against a quota shared by all calls using the
// strategy. Successful attempts refund what they cost.
type StandardRetryStrategy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RetryCost      int
	TimeoutCost    int

	// Jitter maps a computed backoff to the delay actually used. Nil
	// selects a uniform delay in [0, d).
	Jitter func(d time.Duration) time.Duration

	mu        sync.Mutex
	available int
}

// NewStandardRetryStrategy returns a strategy with the default settings and
// a full quota.
func NewStandardRetryStrategy() *StandardRetryStrategy {
	return &StandardRetryStrategy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		RetryCost:      DefaultRetryCost,
		TimeoutCost:    DefaultTimeoutCost,
		available:      DefaultRetryQuota,
	}
}

// Available returns the remaining retry quota.
func (s *StandardRetryStrategy) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *StandardRetryStrategy) AcquireInitialRetryToken(context.Context, string) (RetryToken, error) {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     s.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         s.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()
	return &attemptToken{attempt: 1, bo: bo}, nil
}

func (s *StandardRetryStrategy) RefreshRetryToken(token RetryToken, err error) (RetryToken, error) {
	prev, ok := token.(*attemptToken)
	if !ok {
		return nil, fmt.Errorf("retry: foreign token %T", token)
	}
	info := IsRetryable(err)
	if !info.Retryable {
		return nil, err
	}
	if prev.attempt >= max(s.MaxAttempts, 1) {
		return nil, ErrMaxAttempts
	}

	cost := s.RetryCost
	if isTimeout(err) {
		cost = s.TimeoutCost
	}
	s.mu.Lock()
	if s.available < cost {
		s.mu.Unlock()
		return nil, ErrRetryQuotaExceeded
	}
	s.available -= cost
	s.mu.Unlock()

	delay := info.RetryAfter
	if d := prev.bo.NextBackOff(); delay == 0 && d != backoff.Stop {
		delay = s.jitter(d)
	}
	return &attemptToken{attempt: prev.attempt + 1, delay: delay, cost: cost, bo: prev.bo}, nil
}

func (s *StandardRetryStrategy) RecordSuccess(token RetryToken) {
	t, ok := token.(*attemptToken)
	if !ok {
		return
	}
	refund := t.cost
	if refund == 0 {
		refund = noRetryIncrement
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = min(s.available+refund, DefaultRetryQuota)
}

func (s *StandardRetryStrategy) jitter(d time.Duration) time.Duration {
	if s.Jitter != nil {
		return s.Jitter(d)
	}
	if d <= 0 {
		return 0
	}
	return rand.N(d)
}
