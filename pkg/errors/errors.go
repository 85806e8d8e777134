// Package errors provides the error taxonomy and warning system shared by the
// whole pipeline. Errors carry stack traces via cockroachdb/errors and expose
// structured fields to zerolog.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("hfoutcome warning: %v\n", w)
	}
)

// SetWarningHandler replaces the process-wide warning handler. Warnings are
// non-fatal by contract: they are reported, never propagated.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// Warn reports a non-fatal warning through the configured handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	if warningHandler != nil {
		warningHandler(w)
	}
}

// SearchExhaustedError indicates that a hyperparameter search produced no
// trainable candidate: every sampled configuration failed during training.
type SearchExhaustedError struct {
	Outcome   string
	Attempted int
	LastErr   error
}

func (e *SearchExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("hfoutcome: search for outcome %q exhausted after %d candidates, last error: %v", e.Outcome, e.Attempted, e.LastErr)
	}
	return fmt.Sprintf("hfoutcome: search for outcome %q exhausted after %d candidates", e.Outcome, e.Attempted)
}

func (e *SearchExhaustedError) Unwrap() error { return e.LastErr }

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *SearchExhaustedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("outcome", e.Outcome).
		Int("attempted", e.Attempted).
		Str("type", "SearchExhaustedError")
}

// NewSearchExhaustedError creates a SearchExhaustedError with a stack trace.
func NewSearchExhaustedError(outcome string, attempted int, lastErr error) error {
	err := &SearchExhaustedError{Outcome: outcome, Attempted: attempted, LastErr: lastErr}
	return errors.WithStack(err)
}

// DegenerateSampleError indicates a scored sample contained only one class, so
// two-class metrics are undefined on it.
type DegenerateSampleError struct {
	Op      string
	Class   float64
	Records int
}

func (e *DegenerateSampleError) Error() string {
	return fmt.Sprintf("hfoutcome: %s: sample of %d records contains only class %g", e.Op, e.Records, e.Class)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *DegenerateSampleError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Float64("class", e.Class).
		Int("records", e.Records).
		Str("type", "DegenerateSampleError")
}

// NewDegenerateSampleError creates a DegenerateSampleError with a stack trace.
func NewDegenerateSampleError(op string, class float64, records int) error {
	err := &DegenerateSampleError{Op: op, Class: class, Records: records}
	return errors.WithStack(err)
}

// UnreliableBootstrapError indicates that more than half of the bootstrap
// replicates were degenerate, so the percentile intervals cannot be trusted.
type UnreliableBootstrapError struct {
	Excluded   int
	Replicates int
}

func (e *UnreliableBootstrapError) Error() string {
	return fmt.Sprintf("hfoutcome: bootstrap unreliable: %d of %d replicates degenerate", e.Excluded, e.Replicates)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *UnreliableBootstrapError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("excluded", e.Excluded).
		Int("replicates", e.Replicates).
		Str("type", "UnreliableBootstrapError")
}

// NewUnreliableBootstrapError creates an UnreliableBootstrapError with a stack trace.
func NewUnreliableBootstrapError(excluded, replicates int) error {
	err := &UnreliableBootstrapError{Excluded: excluded, Replicates: replicates}
	return errors.WithStack(err)
}

// ConfigurationError indicates a malformed configuration value, such as an
// empty hyperparameter range or an invalid search budget.
type ConfigurationError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("hfoutcome: invalid configuration for %q: %s (got: %v)", e.Field, e.Reason, e.Value)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(field, reason string, value interface{}) error {
	err := &ConfigurationError{Field: field, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ResourceCleanupWarning reports per-unit training artifacts that were still
// live when their workspace closed. Logged, never propagated.
type ResourceCleanupWarning struct {
	Scope     string
	Artifacts int
}

func (w *ResourceCleanupWarning) Error() string {
	return fmt.Sprintf("%d artifact(s) not released before workspace %q closed", w.Artifacts, w.Scope)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (w *ResourceCleanupWarning) MarshalZerologObject(event *zerolog.Event) {
	event.Str("scope", w.Scope).
		Int("artifacts", w.Artifacts).
		Str("type", "ResourceCleanupWarning")
}

// NewResourceCleanupWarning creates a ResourceCleanupWarning.
func NewResourceCleanupWarning(scope string, artifacts int) *ResourceCleanupWarning {
	return &ResourceCleanupWarning{Scope: scope, Artifacts: artifacts}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

var (
	// ErrEmptyData is returned when an operation receives no records.
	ErrEmptyData = New("empty data")
)
