package settings

import (
	"time"

	"github.com/huandu/go-clone"
)

const (
	DefaultRetryInitialDelay    = 500 * time.Millisecond
	DefaultRetryExponentialBase = 2.0
	DefaultRetryJitter          = 0.5
)

// RetrySettings configures the backoff of the completion transport.
//
// MaxRetries nil retries without limit (until the request context is done),
// 0 disables retrying.
type RetrySettings struct {
	MaxRetries      *int           `yaml:"max_retries,omitempty" mapstructure:"max-retries"`
	InitialDelay    *time.Duration `yaml:"initial_delay,omitempty" mapstructure:"retry-initial-delay"`
	ExponentialBase *float64       `yaml:"exponential_base,omitempty" mapstructure:"retry-exponential-base"`
	Jitter          *float64       `yaml:"jitter,omitempty" mapstructure:"retry-jitter"`
}

func NewRetrySettings() *RetrySettings {
	initialDelay := DefaultRetryInitialDelay
	base := DefaultRetryExponentialBase
	jitter := DefaultRetryJitter
	return &RetrySettings{
		InitialDelay:    &initialDelay,
		ExponentialBase: &base,
		Jitter:          &jitter,
	}
}

func (r *RetrySettings) Clone() *RetrySettings {
	return clone.Clone(r).(*RetrySettings)
}

func (r *RetrySettings) GetInitialDelay() time.Duration {
	if r == nil || r.InitialDelay == nil {
		return DefaultRetryInitialDelay
	}
	return *r.InitialDelay
}

func (r *RetrySettings) GetExponentialBase() float64 {
	if r == nil || r.ExponentialBase == nil {
		return DefaultRetryExponentialBase
	}
	return *r.ExponentialBase
}

func (r *RetrySettings) GetJitter() float64 {
	if r == nil || r.Jitter == nil {
		return DefaultRetryJitter
	}
	return *r.Jitter
}

// Delay computes the wait before the given retry, counted from 1.
func (r *RetrySettings) Delay(retry int, random float64) time.Duration {
	d := float64(r.GetInitialDelay())
	base := r.GetExponentialBase()
	for i := 0; i < retry; i++ {
		d *= base
	}
	d *= 1.0 + random*r.GetJitter()
	return time.Duration(d)
}

// Allows reports whether another retry may follow the given number of retries already made.
func (r *RetrySettings) Allows(retriesDone int) bool {
	if r == nil || r.MaxRetries == nil {
		return true
	}
	return retriesDone < *r.MaxRetries
}
