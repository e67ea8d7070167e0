package remote

import (
	"context"
	"fmt"
	"time"

	"ordergate/internal/resilience"
)

// Kind classifies the outcome of a resilient remote call.
type Kind int

const (
	// Success carries a usable payload.
	Success Kind = iota
	// TerminalRejection is a definitive business-level "no" from a healthy
	// remote. Never retried, never counted against the breaker.
	TerminalRejection
	// TransientFailure is a network-shaped error; retries were spent (or the
	// call was canceled) without getting an answer.
	TransientFailure
	// CircuitOpen means the breaker rejected the call before any transport
	// attempt was made.
	CircuitOpen
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TerminalRejection:
		return "rejected"
	case TransientFailure:
		return "transient-failure"
	case CircuitOpen:
		return "circuit-open"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of one logical Call.
type Outcome[T any] struct {
	Kind    Kind
	Payload T
	Reason  string
	Err     error
}

// Transport performs one physical request against the remote service.
type Transport[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Caller combines a transport with a retry policy and a shared circuit
// breaker into one resilient operation. Reject inspects a successful
// response for a payload-level rejection; TerminalErr marks transport errors
// that must not be retried (bad credentials, malformed request).
type Caller[Req, Resp any] struct {
	Name        string
	Transport   Transport[Req, Resp]
	Reject      func(Resp) (reason string, rejected bool)
	TerminalErr func(error) (reason string, terminal bool)
	Breaker     *resilience.CircuitBreaker
	Retry       resilience.RetryPolicy
	Timeout     time.Duration
	Logf        func(format string, args ...any)
}

// Call runs the transport under the retry policy and breaker. The breaker is
// consulted after the backoff, immediately before every physical attempt,
// and updated exactly once per attempt that actually ran; an OPEN
// short-circuit contributes no update.
func (c *Caller[Req, Resp]) Call(ctx context.Context, req Req) Outcome[Resp] {
	logf := c.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	attempts := c.Retry.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.Retry.WaitBefore(ctx, attempt); err != nil {
			return Outcome[Resp]{Kind: TransientFailure, Err: err}
		}
		if c.Breaker != nil {
			if err := c.Breaker.Allow(); err != nil {
				return Outcome[Resp]{Kind: CircuitOpen, Err: err}
			}
		}

		resp, err := c.invoke(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				// The whole orchestration is gone; this attempt carries no
				// verdict about the remote's health.
				if c.Breaker != nil {
					c.Breaker.Release()
				}
				return Outcome[Resp]{Kind: TransientFailure, Err: ctx.Err()}
			}
			if c.TerminalErr != nil {
				if reason, terminal := c.TerminalErr(err); terminal {
					if c.Breaker != nil {
						c.Breaker.RecordRejection()
					}
					return Outcome[Resp]{Kind: TerminalRejection, Reason: reason, Err: err}
				}
			}
			if c.Breaker != nil {
				c.Breaker.RecordFailure()
			}
			lastErr = err
			logf("remote %s: attempt %d/%d failed: %v", c.Name, attempt, attempts, err)
			continue
		}

		if c.Reject != nil {
			if reason, rejected := c.Reject(resp); rejected {
				if c.Breaker != nil {
					c.Breaker.RecordRejection()
				}
				return Outcome[Resp]{Kind: TerminalRejection, Payload: resp, Reason: reason}
			}
		}
		if c.Breaker != nil {
			c.Breaker.RecordSuccess()
		}
		return Outcome[Resp]{Kind: Success, Payload: resp}
	}

	return Outcome[Resp]{
		Kind: TransientFailure,
		Err:  fmt.Errorf("%s: retries exhausted: %w", c.Name, lastErr),
	}
}

func (c *Caller[Req, Resp]) invoke(ctx context.Context, req Req) (Resp, error) {
	if c.Timeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()
		return c.Transport(attemptCtx, req)
	}
	return c.Transport(ctx, req)
}
