package model

import (
	"fmt"
	"strings"
	"time"
)

type RetryConfig struct {
	MaxRetries          int           `json:"max_retries" yaml:"maxRetries"`
	InitialDelay        time.Duration `json:"initial_delay" yaml:"initialDelay"`
	MaxDelay            time.Duration `json:"max_delay" yaml:"maxDelay"`
	BackoffFactor       float64       `json:"backoff_factor" yaml:"backoffFactor"`
	RetryableErrorTypes []ErrorType   `json:"retryable_error_types" yaml:"retryableErrorTypes"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrorTypes: []ErrorType{
			ErrorRateLimit,
			ErrorServer,
			ErrorTimeout,
			ErrorNetwork,
		},
	}
}

// RetriesOn reports whether typ is in the retryable set.
func (c RetryConfig) RetriesOn(typ ErrorType) bool {
	for _, t := range c.RetryableErrorTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func (c RetryConfig) Validate() error {
	var errs []string
	if c.MaxRetries < 0 {
		errs = append(errs, "maxRetries must be >= 0")
	}
	if c.InitialDelay < 0 {
		errs = append(errs, "initialDelay must be >= 0")
	}
	if c.MaxDelay < c.InitialDelay {
		errs = append(errs, "maxDelay must be >= initialDelay")
	}
	if c.BackoffFactor < 1 {
		errs = append(errs, "backoffFactor must be >= 1")
	}
	for _, t := range c.RetryableErrorTypes {
		if !t.Valid() {
			errs = append(errs, fmt.Sprintf("unknown retryable error type %q", t))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRetryConfig, strings.Join(errs, "; "))
	}
	return nil
}
