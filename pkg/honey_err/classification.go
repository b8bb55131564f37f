// pkg/honey_err/classification.go
//
// Error classification with exit codes. Every failure surfaced by a
// core operation carries one of these categories so callers and the
// CLI can branch on the kind of failure rather than on message text.

package honey_err

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategorySystem - OS/filesystem issues (exit 1)
	CategorySystem ErrorCategory = iota
	// CategoryValidation - Input validation failures (exit 2)
	CategoryValidation
	// CategoryInternal - Bugs in honeydash itself (exit 3)
	CategoryInternal
	// CategoryPermission - operation needs elevated privileges (exit 4)
	CategoryPermission
	// CategoryNotInstalled - a decoy installation could not be located (exit 5)
	CategoryNotInstalled
	// CategoryNotConfigured - installation found but listener not configured (exit 5)
	CategoryNotConfigured
	// CategoryNotRunning - stop requested for a decoy that is not running (exit 5)
	CategoryNotRunning
	// CategoryAlreadyActive - diversion already installed or decoy already running (exit 6)
	CategoryAlreadyActive
	// CategoryExternalCommand - a host command exited non-zero (exit 7)
	CategoryExternalCommand
	// CategoryPortExhaustion - no free port found within the attempt cap (exit 8)
	CategoryPortExhaustion
)

func (c ErrorCategory) String() string {
	switch c {
	case CategorySystem:
		return "system"
	case CategoryValidation:
		return "validation"
	case CategoryInternal:
		return "internal"
	case CategoryPermission:
		return "permission_denied"
	case CategoryNotInstalled:
		return "not_installed"
	case CategoryNotConfigured:
		return "not_configured"
	case CategoryNotRunning:
		return "not_running"
	case CategoryAlreadyActive:
		return "already_active"
	case CategoryExternalCommand:
		return "external_command_failed"
	case CategoryPortExhaustion:
		return "port_exhaustion"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string

	// Output holds the captured output of a failed host command.
	Output string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if e.Output != "" {
		sb.WriteString(fmt.Sprintf("\n\nOutput:\n%s", strings.TrimRight(e.Output, "\n")))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryInternal:
		return 3
	case CategoryPermission:
		return 4
	case CategoryNotInstalled, CategoryNotConfigured, CategoryNotRunning:
		return 5
	case CategoryAlreadyActive:
		return 6
	case CategoryExternalCommand:
		return 7
	case CategoryPortExhaustion:
		return 8
	default:
		return 1
	}
}

// GetExitCode extracts exit code from any error
// Returns 0 for nil and for expected user errors, the category code for
// classified errors, 1 for anything else.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	if IsExpectedUserError(err) {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	return 1
}

// CategoryOf returns the category of the first ClassifiedError in the chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category, true
	}
	return CategorySystem, false
}

// Is reports whether err carries the given category.
func Is(err error, category ErrorCategory) bool {
	c, ok := CategoryOf(err)
	return ok && c == category
}

// NewValidationError creates an error for input validation failures
func NewValidationError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryValidation,
		Message:     message,
		Remediation: remediation,
	}
}

// NewPermissionError is returned when an operation needs root.
func NewPermissionError(operation string) error {
	return &ClassifiedError{
		Category: CategoryPermission,
		Message:  fmt.Sprintf("%s requires administrative privileges", operation),
		Remediation: []string{
			fmt.Sprintf("Re-run with sudo: sudo honeydash %s", operation),
		},
	}
}

// NewNotInstalledError is returned when a decoy installation cannot be located.
func NewNotInstalledError(service string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryNotInstalled,
		Message:     fmt.Sprintf("%s is not installed or could not be detected", service),
		Remediation: remediation,
	}
}

// NewNotConfiguredError is returned when a service is present but not set up.
func NewNotConfiguredError(service, detail string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryNotConfigured,
		Message:     fmt.Sprintf("%s installed but not properly configured: %s", service, detail),
		Remediation: remediation,
	}
}

// NewNotRunningError is returned when a stop is requested for a stopped decoy.
func NewNotRunningError(service string) error {
	return &ClassifiedError{
		Category: CategoryNotRunning,
		Message:  fmt.Sprintf("%s is not running", service),
	}
}

// NewAlreadyActiveError is returned when the requested state already holds.
func NewAlreadyActiveError(what string) error {
	return &ClassifiedError{
		Category: CategoryAlreadyActive,
		Message:  fmt.Sprintf("%s is already active", what),
	}
}

// NewExternalCommandError wraps a non-zero exit of a host command and keeps
// its output verbatim for diagnosis.
func NewExternalCommandError(command string, output string, cause error) error {
	return &ClassifiedError{
		Category: CategoryExternalCommand,
		Message:  fmt.Sprintf("command %q failed", command),
		Cause:    cause,
		Output:   output,
	}
}

// NewPortExhaustionError is returned when no free port was found.
func NewPortExhaustionError(attempts int) error {
	return &ClassifiedError{
		Category: CategoryPortExhaustion,
		Message:  fmt.Sprintf("no free port found after %d attempts", attempts),
		Remediation: []string{
			"Free some listening ports or widen redirect.port_min/redirect.port_max",
		},
	}
}

// NewSystemError creates an error for filesystem and OS issues
func NewSystemError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategorySystem,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}
