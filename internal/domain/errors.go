package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Pair them with NewSubSystemError for subsystem-specific codes.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrDuplicate        = fmt.Errorf("duplicate")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrLimitReached     = fmt.Errorf("limit reached")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrInvalidInput     = fmt.Errorf("invalid input")
)

// Frame decoding errors. ErrUnrecognizedEvent is soft: callers log and ignore.
// ErrFatalControlDecode aborts the connection attempt it occurred in.
var (
	ErrMalformedFrame     = fmt.Errorf("malformed gateway frame")
	ErrUnrecognizedEvent  = fmt.Errorf("unrecognized event type")
	ErrEventDecode        = fmt.Errorf("event payload decode failed")
	ErrFatalControlDecode = fmt.Errorf("control payload decode failed")
)

// Session and transport errors.
var (
	ErrTransportOpen    = fmt.Errorf("transport open failed")
	ErrTransportClosed  = fmt.Errorf("transport channel closed")
	ErrSessionNotFound  = fmt.Errorf("session not found")
	ErrSessionDuplicate = fmt.Errorf("session already registered")
	ErrSessionNotReady  = fmt.Errorf("session not ready")
	ErrRateLimit        = fmt.Errorf("rate limit exceeded")
	ErrEndpointResolve  = fmt.Errorf("gateway endpoint resolve failed")
	ErrCircuitOpen      = fmt.Errorf("circuit breaker open")
	ErrStore            = fmt.Errorf("snapshot store failed")
	ErrForwardFailed    = fmt.Errorf("event forward failed")

	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrDecryption = fmt.Errorf("decryption failed")

	// Control API errors.
	ErrAuthInvalid       = fmt.Errorf("authentication failed")
	ErrGatewayAuthFailed = fmt.Errorf("control: %w", ErrAuthInvalid)
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Manager.Connect")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "registry", "store"); used for ErrorCode dispatch
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

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
// Use this with category sentinels (ErrNotFound, ErrTimeout, etc.) so that ErrorCodeOf
// can map the combination of sentinel + subsystem to a specific ErrorCode.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
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
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTransportOpen) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrTimeout)
}

// IsSoftDecodeError reports whether a frame decode error can be ignored
// without affecting the session.
func IsSoftDecodeError(err error) bool {
	return errors.Is(err, ErrUnrecognizedEvent)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeMalformedFrame     ErrorCode = "MALFORMED_FRAME"
	CodeUnrecognizedEvent  ErrorCode = "UNRECOGNIZED_EVENT"
	CodeEventDecode        ErrorCode = "EVENT_DECODE"
	CodeFatalControlDecode ErrorCode = "FATAL_CONTROL_DECODE"
	CodeTransportOpen      ErrorCode = "TRANSPORT_OPEN"
	CodeTransportClosed    ErrorCode = "TRANSPORT_CLOSED"
	CodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionDuplicate   ErrorCode = "SESSION_DUPLICATE"
	CodeSessionNotReady    ErrorCode = "SESSION_NOT_READY"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeEndpointResolve    ErrorCode = "ENDPOINT_RESOLVE"
	CodeCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
	CodeStore              ErrorCode = "STORE"
	CodeForwardFailed      ErrorCode = "FORWARD_FAILED"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeDecryption         ErrorCode = "DECRYPTION"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeGatewayAuth        ErrorCode = "GATEWAY_AUTH"
	CodeRPCMethodNotFound  ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload  ErrorCode = "RPC_INVALID_PAYLOAD"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeRouteNotFound    ErrorCode = "ROUTE_NOT_FOUND"
	CodeSnapshotNotFound ErrorCode = "SNAPSHOT_NOT_FOUND"
	CodeOwnerNotFound    ErrorCode = "OWNER_NOT_FOUND"
	CodeOutboundInvalid  ErrorCode = "OUTBOUND_INVALID"
	CodeResolveTimeout   ErrorCode = "RESOLVE_TIMEOUT"

	// Category error codes, used when no subsystem-specific code matches.
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeLimitReached     ErrorCode = "LIMIT_REACHED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrDuplicate:        CodeDuplicate,
	ErrTimeout:          CodeTimeout,
	ErrLimitReached:     CodeLimitReached,
	ErrPermissionDenied: CodePermissionDenied,
	ErrInvalidInput:     CodeInvalidInput,

	ErrMalformedFrame:     CodeMalformedFrame,
	ErrUnrecognizedEvent:  CodeUnrecognizedEvent,
	ErrEventDecode:        CodeEventDecode,
	ErrFatalControlDecode: CodeFatalControlDecode,
	ErrTransportOpen:      CodeTransportOpen,
	ErrTransportClosed:    CodeTransportClosed,
	ErrSessionNotFound:    CodeSessionNotFound,
	ErrSessionDuplicate:   CodeSessionDuplicate,
	ErrSessionNotReady:    CodeSessionNotReady,
	ErrRateLimit:          CodeRateLimit,
	ErrEndpointResolve:    CodeEndpointResolve,
	ErrCircuitOpen:        CodeCircuitOpen,
	ErrStore:              CodeStore,
	ErrForwardFailed:      CodeForwardFailed,
	ErrConfigLoad:         CodeConfigLoad,
	ErrDecryption:         CodeDecryption,
	ErrAuthInvalid:        CodeAuthInvalid,
	ErrGatewayAuthFailed:  CodeGatewayAuth,
	ErrRPCMethodNotFound:  CodeRPCMethodNotFound,
	ErrRPCInvalidPayload:  CodeRPCInvalidPayload,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"registry": CodeRouteNotFound,
		"store":    CodeSnapshotNotFound,
		"forward":  CodeOwnerNotFound,
	},
	ErrInvalidInput: {
		"outbound": CodeOutboundInvalid,
	},
	ErrTimeout: {
		"resolver": CodeResolveTimeout,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Subsystem sentinels first so wrapped specifics win over categories.
	for _, sentinel := range codeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// codeOrder fixes the errors.Is walk order; map iteration would make
// ErrorCodeOf nondeterministic for errors that wrap several sentinels.
var codeOrder = []error{
	ErrGatewayAuthFailed,
	ErrMalformedFrame, ErrUnrecognizedEvent, ErrEventDecode, ErrFatalControlDecode,
	ErrTransportOpen, ErrTransportClosed,
	ErrSessionNotFound, ErrSessionDuplicate, ErrSessionNotReady,
	ErrRateLimit, ErrEndpointResolve, ErrCircuitOpen, ErrStore, ErrForwardFailed,
	ErrConfigLoad, ErrDecryption, ErrAuthInvalid,
	ErrRPCMethodNotFound, ErrRPCInvalidPayload,
	ErrNotFound, ErrDuplicate, ErrTimeout, ErrLimitReached,
	ErrPermissionDenied, ErrInvalidInput,
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
