package core

import (
	"fmt"

	"solidcore/pkg/model"
)

// Severity ranks a rule violation.
type Severity string

const (
	// SeverityBlock discards the operation.
	SeverityBlock Severity = "block"
	// SeverityWarn commits but reports the violation to the caller.
	SeverityWarn Severity = "warn"
	// SeverityLog commits and only logs the violation.
	SeverityLog Severity = "log"
)

// Violation is one rule finding against an entity.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Kind     string
	Handle   model.Handle
}

// Result aggregates the violations of one evaluation.
type Result struct {
	Violations []Violation
}

// Merge appends other's violations.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation blocks the operation.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Blocking returns the blocking violations only.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// violationFor fills the entity identity of a violation.
func violationFor(rule string, sev Severity, e model.Entity, format string, args ...any) Violation {
	v := Violation{Rule: rule, Severity: sev, Message: fmt.Sprintf(format, args...)}
	if kind, level := model.Identity(e); level >= 0 {
		v.Kind = kind
		v.Handle = e.Core().Handle()
	}
	return v
}

// RuleViolationError is returned when blocking violations discard an operation.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Blocking()
	if len(blocking) == 0 {
		return "operation blocked by rules"
	}
	first := blocking[0]
	msg := fmt.Sprintf("operation blocked by rules: %s: %s", first.Rule, first.Message)
	if len(blocking) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(blocking)-1)
	}
	return msg
}
