// Package errors provides unified error handling with a structured error Code.
// Codes map onto gRPC status codes so the health service and CLI speak the same language.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain identifies this service in gRPC ErrorInfo details.
const ErrorDomain = "snapnotify"

// Code classifies an AppError.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeInvalidArgument
	CodeUnavailable
	CodeCancelled
	CodeListenerRegistration // clipboard listener could not attach
	CodeImageDecode
	CodeFingerprint
	CodeSaveFailed
	CodeWatchFailed
	CodeConfigInvalid
)

var codeNames = map[Code]string{
	CodeUnknown:              "UNKNOWN",
	CodeInternal:             "INTERNAL",
	CodeInvalidArgument:      "INVALID_ARGUMENT",
	CodeUnavailable:          "UNAVAILABLE",
	CodeCancelled:            "CANCELLED",
	CodeListenerRegistration: "LISTENER_REGISTRATION",
	CodeImageDecode:          "IMAGE_DECODE",
	CodeFingerprint:          "FINGERPRINT",
	CodeSaveFailed:           "SAVE_FAILED",
	CodeWatchFailed:          "WATCH_FAILED",
	CodeConfigInvalid:        "CONFIG_INVALID",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:              codes.Unknown,
	CodeInternal:             codes.Internal,
	CodeInvalidArgument:      codes.InvalidArgument,
	CodeUnavailable:          codes.Unavailable,
	CodeCancelled:            codes.Canceled,
	CodeListenerRegistration: codes.Unavailable,
	CodeImageDecode:          codes.InvalidArgument,
	CodeFingerprint:          codes.Internal,
	CodeSaveFailed:           codes.Internal,
	CodeWatchFailed:          codes.Unavailable,
	CodeConfigInvalid:        codes.InvalidArgument,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToDetail converts to a google.rpc.ErrorInfo message.
func (e *AppError) ToDetail() *errdetails.ErrorInfo {
	info := &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: ErrorDomain}
	if len(e.Metadata) > 0 {
		info.Metadata = e.Metadata
	}
	return info
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	if withDetail, err := st.WithDetails(e.ToDetail()); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for code, name := range codeNames {
			if name == info.GetReason() {
				return &AppError{Code: code, Message: st.Message(), Metadata: info.GetMetadata()}
			}
		}
	}

	// Fallback: map gRPC code to our error code
	return &AppError{Code: grpcToErrorCode(st.Code()), Message: st.Message()}
}

// grpcToErrorCode maps gRPC codes back to our error codes (best effort).
func grpcToErrorCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.Unavailable, codes.DeadlineExceeded:
		return CodeUnavailable
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

// IsCode checks if an error, or anything it wraps, has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeWatchFailed:
		return true
	default:
		return false
	}
}
