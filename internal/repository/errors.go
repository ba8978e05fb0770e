package repository

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes repository errors.
type ErrorCode string

const (
	// ErrCodeAuthorization: the principal lacks a property on an entry.
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION"

	// ErrCodeQuotaExceeded: a write would exceed the context byte budget.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeEntryMissing: the target entry does not exist.
	ErrCodeEntryMissing ErrorCode = "ENTRY_MISSING"

	// ErrCodeIntegrityViolation: a containment or classification rule
	// would be broken.
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"

	// ErrCodeStoreConnectivity: the statement store failed mid-operation.
	ErrCodeStoreConnectivity ErrorCode = "STORE_CONNECTIVITY"

	// ErrCodeDisallowed: the operation targets a system entry.
	ErrCodeDisallowed ErrorCode = "DISALLOWED"
)

// AuthorizationError is returned when Authorize denies access.
type AuthorizationError struct {
	Code      ErrorCode
	Principal string
	Entry     string
	Property  AccessProperty
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s lacks %s on %s", e.Code, e.Principal, e.Property, e.Entry)
}

// QuotaExceededError is returned when a write would overflow the context
// quota. Fill level and payload are left unchanged.
type QuotaExceededError struct {
	Code      ErrorCode
	Context   string
	Quota     int64
	FillLevel int64
	Requested int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: context %s: %d + %d bytes exceeds quota %d",
		e.Code, e.Context, e.FillLevel, e.Requested, e.Quota)
}

// EntryMissingError is returned for operations on unknown entries.
type EntryMissingError struct {
	Code  ErrorCode
	Entry string
}

func (e *EntryMissingError) Error() string {
	return fmt.Sprintf("%s: no entry %s", e.Code, e.Entry)
}

// IntegrityViolationError is returned when a containment, single-parent,
// orphan or classification rule would be broken. Nothing is committed.
type IntegrityViolationError struct {
	Code    ErrorCode
	Entry   string
	Message string
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Entry, e.Message)
}

// StoreConnectivityError wraps a statement store failure. The transaction
// has been rolled back and affected entries refreshed.
type StoreConnectivityError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *StoreConnectivityError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *StoreConnectivityError) Unwrap() error { return e.Err }

// DisallowedError is returned when removing a system entry.
type DisallowedError struct {
	Code    ErrorCode
	Entry   string
	Message string
}

func (e *DisallowedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Entry, e.Message)
}

func newAuthorizationError(principal, entry string, p AccessProperty) *AuthorizationError {
	return &AuthorizationError{Code: ErrCodeAuthorization, Principal: principal, Entry: entry, Property: p}
}

func newEntryMissingError(entry string) *EntryMissingError {
	return &EntryMissingError{Code: ErrCodeEntryMissing, Entry: entry}
}

func integrityViolation(entry, format string, args ...any) *IntegrityViolationError {
	return &IntegrityViolationError{Code: ErrCodeIntegrityViolation, Entry: entry, Message: fmt.Sprintf(format, args...)}
}

func storeError(op string, err error) *StoreConnectivityError {
	return &StoreConnectivityError{Code: ErrCodeStoreConnectivity, Op: op, Err: err}
}

// IsAuthorizationError returns true if err is or wraps an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

// IsQuotaExceededError returns true if err is or wraps a QuotaExceededError.
func IsQuotaExceededError(err error) bool {
	var e *QuotaExceededError
	return errors.As(err, &e)
}

// IsEntryMissingError returns true if err is or wraps an EntryMissingError.
func IsEntryMissingError(err error) bool {
	var e *EntryMissingError
	return errors.As(err, &e)
}

// IsIntegrityViolationError returns true if err is or wraps an
// IntegrityViolationError.
func IsIntegrityViolationError(err error) bool {
	var e *IntegrityViolationError
	return errors.As(err, &e)
}

// IsStoreConnectivityError returns true if err is or wraps a
// StoreConnectivityError.
func IsStoreConnectivityError(err error) bool {
	var e *StoreConnectivityError
	return errors.As(err, &e)
}

// IsDisallowedError returns true if err is or wraps a DisallowedError.
func IsDisallowedError(err error) bool {
	var e *DisallowedError
	return errors.As(err, &e)
}

// policyError reports whether err is a policy decision that must reach the
// caller unwrapped.
func policyError(err error) bool {
	return IsAuthorizationError(err) || IsQuotaExceededError(err) ||
		IsIntegrityViolationError(err) || IsEntryMissingError(err) || IsDisallowedError(err)
}

// CodeOf returns the code of the repository error err is or wraps, or
// empty for any other error.
func CodeOf(err error) ErrorCode {
	var (
		auth  *AuthorizationError
		quota *QuotaExceededError
		miss  *EntryMissingError
		integ *IntegrityViolationError
		st    *StoreConnectivityError
		dis   *DisallowedError
	)
	switch {
	case errors.As(err, &auth):
		return auth.Code
	case errors.As(err, &quota):
		return quota.Code
	case errors.As(err, &miss):
		return miss.Code
	case errors.As(err, &integ):
		return integ.Code
	case errors.As(err, &dis):
		return dis.Code
	case errors.As(err, &st):
		return st.Code
	}
	return ""
}

// IsPolicyError reports whether err is a refusal by the repository rather
// than a failure of the store or the caller.
func IsPolicyError(err error) bool { return policyError(err) }
