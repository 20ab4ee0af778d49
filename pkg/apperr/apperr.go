package apperr

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how the caller is expected to react.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindStateConflict     Kind = "STATE_CONFLICT"
	KindAuthorization     Kind = "AUTHORIZATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindInternal          Kind = "INTERNAL"
)

// Code is the stable, machine readable identifier returned to API callers.
type Code string

const (
	CodeInvalidArgument            Code = "INVALID_ARGUMENT"
	CodeBelowMinimum               Code = "BELOW_MINIMUM"
	CodeInvalidAddress             Code = "INVALID_ADDRESS"
	CodeDuplicateLogin             Code = "DUPLICATE_LOGIN"
	CodeInvalidCredentials         Code = "INVALID_CREDENTIALS"
	CodeUnauthorized               Code = "UNAUTHORIZED"
	CodeForbidden                  Code = "FORBIDDEN"
	CodeNotFound                   Code = "NOT_FOUND"
	CodeNotEnoughDeposit           Code = "NOT_ENOUGH_DEPOSIT"
	CodeAlreadyMaxLevel            Code = "ALREADY_MAX_LEVEL"
	CodeVIPRequired                Code = "VIP_REQUIRED"
	CodeDailyLimitExceeded         Code = "DAILY_LIMIT_EXCEEDED"
	CodeCooldownActive             Code = "COOLDOWN_ACTIVE"
	CodeQuotaExceeded              Code = "QUOTA_EXCEEDED"
	CodeAlreadyClaimedToday        Code = "ALREADY_CLAIMED_TODAY"
	CodeAlreadyResolved            Code = "ALREADY_RESOLVED"
	CodeBusy                       Code = "BUSY"
	CodeInsufficientFunds          Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientFundsAtApprove Code = "INSUFFICIENT_FUNDS_AT_APPROVAL"
	CodeDuplicateLevel             Code = "DUPLICATE_LEVEL"
	CodeLevelInUse                 Code = "LEVEL_IN_USE"
	CodeInternal                   Code = "INTERNAL"
)

type Error struct {
	Kind    Kind              `json:"-"`
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so sentinels work with errors.Is
// after details or causes were attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

type Option func(*Error)

func WithErr(err error) Option {
	return func(e *Error) { e.Err = err }
}

func WithDetail(key, value string) Option {
	return func(e *Error) {
		if e.Details == nil {
			e.Details = make(map[string]string)
		}
		e.Details[key] = value
	}
}

func WithMessage(msg string) Option {
	return func(e *Error) { e.Message = msg }
}

func New(kind Kind, code Code, message string, opts ...Option) *Error {
	e := &Error{Kind: kind, Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of the sentinel with the options applied.
func (e *Error) With(opts ...Option) *Error {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

func Validation(code Code, message string, opts ...Option) *Error {
	return New(KindValidation, code, message, opts...)
}

func Conflict(code Code, message string, opts ...Option) *Error {
	return New(KindStateConflict, code, message, opts...)
}

func Internal(message string, err error) *Error {
	return New(KindInternal, CodeInternal, message, WithErr(err))
}

// From extracts the *Error from err. Unknown errors are reported as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

var (
	ErrInvalidAmount    = Validation(CodeInvalidArgument, "amount must be positive with at most two decimal places")
	ErrBelowMinimum     = Validation(CodeBelowMinimum, "amount is below the minimum")
	ErrInvalidAddress   = Validation(CodeInvalidAddress, "wallet address is invalid")
	ErrInvalidLogin     = Validation(CodeInvalidArgument, "login must be 3 to 64 characters")
	ErrInvalidPassword  = Validation(CodeInvalidArgument, "password must be at least 6 characters")
	ErrDuplicateLogin   = Conflict(CodeDuplicateLogin, "login already exists")
	ErrBadCredentials   = New(KindAuthorization, CodeInvalidCredentials, "invalid login or password")
	ErrUnauthorized     = New(KindAuthorization, CodeUnauthorized, "authentication required")
	ErrForbidden        = New(KindAuthorization, CodeForbidden, "admin permission required")
	ErrNotFound         = New(KindNotFound, CodeNotFound, "resource not found")
	ErrNotEnoughDeposit = Conflict(CodeNotEnoughDeposit, "deposit is not enough for the next VIP level")
	ErrAlreadyMaxLevel  = Conflict(CodeAlreadyMaxLevel, "already at the highest VIP level")
	ErrVIPRequired      = Conflict(CodeVIPRequired, "a VIP level is required, make a deposit first")
	ErrDailyLimit       = Conflict(CodeDailyLimitExceeded, "daily limit reached")
	ErrCooldownActive   = Conflict(CodeCooldownActive, "please wait before handling the next order")
	ErrQuotaExceeded    = Conflict(CodeQuotaExceeded, "tap limit reached, try again after the window resets")
	ErrAlreadyClaimed   = Conflict(CodeAlreadyClaimedToday, "daily spin already used today")
	ErrAlreadyResolved  = Conflict(CodeAlreadyResolved, "transaction is already resolved")
	ErrBusy             = Conflict(CodeBusy, "system busy, please retry")
	ErrDuplicateLevel   = Conflict(CodeDuplicateLevel, "VIP level already exists")
	ErrLevelInUse       = Conflict(CodeLevelInUse, "VIP level is held by users")
)

var (
	ErrInsufficientFunds      = New(KindInsufficientFunds, CodeInsufficientFunds, "insufficient balance")
	ErrInsufficientAtApproval = New(KindInsufficientFunds, CodeInsufficientFundsAtApprove, "balance no longer covers the withdrawal")
)
