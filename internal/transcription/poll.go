package transcription

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/voxhall/audio-insights/internal/common"
)

// RetryPolicy bounds a poll loop: a fixed interval between status
// checks while the transcription is running, exponential backoff on
// transient network errors, and an overall deadline measured from the
// first check.
type RetryPolicy struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy mirrors the service defaults: check every 20s,
// double the wait on network errors up to 60s, give up after 5 hours.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Interval:    20 * time.Second,
		Multiplier:  2,
		MaxInterval: 60 * time.Second,
		Timeout:     5 * time.Hour,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Interval <= 0 {
		p.Interval = d.Interval
	}
	if p.Multiplier <= 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	return p
}

// AwaitCompletion polls the transcription until the service reports
// Succeeded or Failed, or the policy deadline passes. A well-formed
// Failed payload is an ExternalService error embedding the service's
// code and message; transient network failures are retried with capped
// exponential backoff and never surface unless the deadline passes. No
// cancellation is sent to the service on timeout; the loop is simply
// abandoned.
func (e *Engine) AwaitCompletion(ctx context.Context, handle string, policy RetryPolicy) (*StatusPayload, error) {
	policy = policy.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.Interval
	bo.Multiplier = policy.Multiplier
	bo.MaxInterval = policy.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // the deadline below bounds the loop
	bo.Reset()

	start := e.now()
	checks := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, common.NewAppError(common.KindTimeout, "context done while polling", err)
		}
		checks++

		payload, err := e.getStatus(ctx, handle)
		if err != nil {
			if !common.IsKind(err, common.KindTransientNetwork) {
				return nil, err
			}
			wait := bo.NextBackOff()
			e.log.Warn("transcription.poll.retry", "handle", handle, "checks", checks,
				"wait", wait.String(), "error", err)
			if e.now().Sub(start) >= policy.Timeout {
				return nil, e.timeoutErr(handle, start, checks, policy)
			}
			e.sleep(wait)
			if e.now().Sub(start) >= policy.Timeout {
				return nil, e.timeoutErr(handle, start, checks, policy)
			}
			continue
		}
		bo.Reset()

		switch payload.Status {
		case statusSucceeded:
			e.log.Info("transcription.poll.succeeded", "handle", handle,
				"checks", checks, "elapsed", e.now().Sub(start).String())
			return payload, nil
		case statusFailed:
			svcErr := payload.Error
			if svcErr.Code == "" && svcErr.Message == "" {
				svcErr = payload.Properties.Error
			}
			e.log.Error("transcription.poll.failed", "handle", handle,
				"code", svcErr.Code, "message", svcErr.Message)
			return nil, common.Errorf(common.KindExternalService,
				"transcription failed: code=%s message=%s", svcErr.Code, svcErr.Message)
		default:
			// Running (or not yet started): wait out the interval.
			e.log.Debug("transcription.poll.running", "handle", handle,
				"status", payload.Status, "checks", checks)
			if e.now().Sub(start) >= policy.Timeout {
				return nil, e.timeoutErr(handle, start, checks, policy)
			}
			e.sleep(policy.Interval)
			if e.now().Sub(start) >= policy.Timeout {
				return nil, e.timeoutErr(handle, start, checks, policy)
			}
		}
	}
}

func (e *Engine) timeoutErr(handle string, start time.Time, checks int, policy RetryPolicy) error {
	e.log.Error("transcription.poll.timeout", "handle", handle,
		"checks", checks, "elapsed", e.now().Sub(start).String())
	return common.Errorf(common.KindTimeout,
		"transcription did not complete within %s", policy.Timeout)
}
