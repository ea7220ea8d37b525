package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrDisabled     = fmt.Errorf("disabled")
)

// Sentinel errors for the console.
var (
	// ErrSessionBusy is returned by Start while another session is active.
	ErrSessionBusy = fmt.Errorf("session already active")

	ErrTransport       = fmt.Errorf("agent transport failed")
	ErrAgentStatus     = fmt.Errorf("agent returned non-success status")
	ErrCircuitOpen     = fmt.Errorf("agent circuit open")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrMalformedRecord = fmt.Errorf("malformed stream record")
	ErrRecordTooLarge  = fmt.Errorf("stream record exceeds size limit")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrDecryption      = fmt.Errorf("decryption failed")

	// Gateway / RPC errors.
	ErrAuthInvalid       = fmt.Errorf("authentication failed")
	ErrForbidden         = fmt.Errorf("permission denied")
	ErrGatewayAuthFailed = fmt.Errorf("gateway: %w", ErrAuthInvalid)
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Session.Start")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTimeout)
}

// ErrorCode is a machine-parseable error category surfaced to gateway clients.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeDisabled          ErrorCode = "DISABLED"
	CodeSessionBusy       ErrorCode = "SESSION_BUSY"
	CodeTransport         ErrorCode = "TRANSPORT"
	CodeAgentStatus       ErrorCode = "AGENT_STATUS"
	CodeCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeMalformedRecord   ErrorCode = "MALFORMED_RECORD"
	CodeRecordTooLarge    ErrorCode = "RECORD_TOO_LARGE"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeDecryption        ErrorCode = "DECRYPTION"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
	CodeGatewayAuth       ErrorCode = "GATEWAY_AUTH"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeRPCMethodNotFound ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload ErrorCode = "RPC_INVALID_PAYLOAD"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:          CodeNotFound,
	ErrTimeout:           CodeTimeout,
	ErrInvalidInput:      CodeInvalidInput,
	ErrDisabled:          CodeDisabled,
	ErrSessionBusy:       CodeSessionBusy,
	ErrTransport:         CodeTransport,
	ErrAgentStatus:       CodeAgentStatus,
	ErrCircuitOpen:       CodeCircuitOpen,
	ErrRateLimit:         CodeRateLimit,
	ErrMalformedRecord:   CodeMalformedRecord,
	ErrRecordTooLarge:    CodeRecordTooLarge,
	ErrConfigLoad:        CodeConfigLoad,
	ErrDecryption:        CodeDecryption,
	ErrGatewayAuthFailed: CodeGatewayAuth,
	ErrAuthInvalid:       CodeAuthInvalid,
	ErrForbidden:         CodeForbidden,
	ErrRPCMethodNotFound: CodeRPCMethodNotFound,
	ErrRPCInvalidPayload: CodeRPCInvalidPayload,
}

// codeOrder fixes the errors.Is walk so wrapped sentinels resolve to the most
// specific code (ErrGatewayAuthFailed wraps ErrAuthInvalid).
var codeOrder = []error{
	ErrGatewayAuthFailed,
	ErrSessionBusy,
	ErrAgentStatus,
	ErrCircuitOpen,
	ErrRateLimit,
	ErrTransport,
	ErrMalformedRecord,
	ErrRecordTooLarge,
	ErrConfigLoad,
	ErrDecryption,
	ErrAuthInvalid,
	ErrForbidden,
	ErrRPCMethodNotFound,
	ErrRPCInvalidPayload,
	ErrNotFound,
	ErrTimeout,
	ErrInvalidInput,
	ErrDisabled,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for _, sentinel := range codeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
