// Copyright 2025 Joseph Cumines
//
// Bridge error taxonomy

package protocol

import (
	"fmt"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// ErrorDomain is the ErrorInfo domain of every bridge error.
const ErrorDomain = "abu"

// ErrorInfo reasons.
const (
	ReasonInvalidParams  = "INVALID_PARAMS"
	ReasonUnknownCommand = "UNKNOWN_COMMAND"
	ReasonRefNotFound    = "REF_NOT_FOUND"
	ReasonUnsupported    = "UNSUPPORTED_ACTION"
	ReasonNoHandler      = "NO_HANDLER"
	ReasonRateLimited    = "RATE_LIMITED"
	ReasonNoScreenshot   = "NO_SCREENSHOT_PROVIDER"
	ReasonInternal       = "INTERNAL"
)

func newError(code codes.Code, reason string, metadata map[string]string, msg string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: metadata,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// InvalidParams reports params that could not be decoded or are missing.
func InvalidParams(command string, cause error) error {
	return newError(codes.InvalidArgument, ReasonInvalidParams,
		map[string]string{"command": command},
		fmt.Sprintf("invalid params for %s: %v", command, cause))
}

// MissingParam reports a required parameter that was not supplied.
func MissingParam(command, param string) error {
	return newError(codes.InvalidArgument, ReasonInvalidParams,
		map[string]string{"command": command, "param": param},
		fmt.Sprintf("missing required param %q for %s", param, command))
}

// UnknownCommand reports a command name with no handler.
func UnknownCommand(name string) error {
	return newError(codes.InvalidArgument, ReasonUnknownCommand,
		map[string]string{"command": name},
		fmt.Sprintf("unknown command: %q", name))
}

// RefNotFound reports an unknown or stale ref.
func RefNotFound(ref string) error {
	return newError(codes.NotFound, ReasonRefNotFound,
		map[string]string{"ref": ref},
		fmt.Sprintf("ref not found: %s (take a new snapshot; refs expire on every walk)", ref))
}

// Unsupported reports a ref whose element does not accept the action.
func Unsupported(ref, action string) error {
	return newError(codes.FailedPrecondition, ReasonUnsupported,
		map[string]string{"ref": ref, "action": action},
		fmt.Sprintf("element %s does not support %s", ref, action))
}

// NoHandler reports a command received before any walker was registered.
func NoHandler(command string) error {
	return newError(codes.FailedPrecondition, ReasonNoHandler,
		map[string]string{"command": command},
		fmt.Sprintf("no command handler registered, cannot process %q: register a scene walker first", command))
}

// RateLimited reports a command rejected by inbound rate limiting. The
// error carries a RetryInfo detail with retryAfter.
func RateLimited(retryAfter time.Duration) error {
	st := status.New(codes.ResourceExhausted, fmt.Sprintf("rate limit exceeded, retry after %s", retryAfter))
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   ReasonRateLimited,
			Domain:   ErrorDomain,
			Metadata: map[string]string{"retry_after": retryAfter.String()},
		},
		&errdetails.RetryInfo{RetryDelay: durationpb.New(retryAfter)},
	)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// NoScreenshot reports a screenshot command on a host that cannot capture
// one.
func NoScreenshot() error {
	return newError(codes.FailedPrecondition, ReasonNoScreenshot, nil,
		"screenshots are not available: no screenshot provider registered")
}

// Internal reports an unexpected failure inside the bridge.
func Internal(msg string) error {
	return newError(codes.Internal, ReasonInternal, nil, msg)
}

// Code returns the canonical code of err, codes.OK for nil.
func Code(err error) codes.Code {
	return status.Code(err)
}

// RetryAfter returns the RetryInfo delay attached to err.
func RetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.RetryInfo); ok && info.GetRetryDelay() != nil {
			return info.GetRetryDelay().AsDuration(), true
		}
	}
	return 0, false
}

// Reason returns the ErrorInfo reason attached to err, or "" if none.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
