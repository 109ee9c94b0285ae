// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import "fmt"

// ErrorCode identifies a session, message, or transport failure.
// Values 300-599 mirror the HTTP status of a gateway response error,
// values 4000-4029 are protocol error frames, and values 1000+ / 6000+
// are client-side conditions that never appear on the wire.
type ErrorCode int

const (
	// Protocol error frames.
	CodeFeatureUnavailable          ErrorCode = 4000
	CodeFileTypeInvalid             ErrorCode = 4001
	CodeFileSizeInvalid             ErrorCode = 4002
	CodeFileNameInvalid             ErrorCode = 4003
	CodeFileNameTooLong             ErrorCode = 4004
	CodeSessionHasExpired           ErrorCode = 4006
	CodeSessionNotFound             ErrorCode = 4007
	CodeAttachmentHasExpired        ErrorCode = 4008
	CodeAttachmentNotFound          ErrorCode = 4009
	CodeAttachmentNotUploaded       ErrorCode = 4010
	CodeMessageTooLong              ErrorCode = 4011
	CodeCustomAttributeSizeTooLarge ErrorCode = 4013
	CodeMissingParameter            ErrorCode = 4020
	CodeRequestRateTooHigh          ErrorCode = 4029

	// Client-side conditions.
	CodeWebsocketError           ErrorCode = 1001
	CodeWebsocketAccessDenied    ErrorCode = 1002
	CodeNetworkDisabled          ErrorCode = 1003
	CodeUnexpectedError          ErrorCode = 5000
	CodeCancellation             ErrorCode = 6000
	CodeAuthFailed               ErrorCode = 6001
	CodeAuthLogoutFailed         ErrorCode = 6002
	CodeRefreshAuthTokenFailure  ErrorCode = 6003
	CodeHistoryFetchFailure      ErrorCode = 6004
	CodeClearConversationFailure ErrorCode = 6005
)

// ErrorCodeFromFrame maps the numeric code of an error frame to an
// ErrorCode. Codes in the HTTP status ranges pass through so callers
// can classify them with IsClientResponseError and friends; anything
// unrecognized maps to CodeUnexpectedError.
func ErrorCodeFromFrame(code int) ErrorCode {
	switch ErrorCode(code) {
	case CodeFeatureUnavailable, CodeFileTypeInvalid, CodeFileSizeInvalid,
		CodeFileNameInvalid, CodeFileNameTooLong, CodeSessionHasExpired,
		CodeSessionNotFound, CodeAttachmentHasExpired, CodeAttachmentNotFound,
		CodeAttachmentNotUploaded, CodeMessageTooLong,
		CodeCustomAttributeSizeTooLarge, CodeMissingParameter,
		CodeRequestRateTooHigh:
		return ErrorCode(code)
	}
	if code >= 300 && code <= 599 {
		return ErrorCode(code)
	}
	return CodeUnexpectedError
}

// ErrorCodeFromHTTP maps an HTTP status to an ErrorCode.
func ErrorCodeFromHTTP(status int) ErrorCode {
	if status >= 300 && status <= 599 {
		return ErrorCode(status)
	}
	return CodeUnexpectedError
}

// IsRedirectResponseError reports whether the code is an HTTP 3xx
// response error.
func (c ErrorCode) IsRedirectResponseError() bool { return c >= 300 && c <= 399 }

// IsClientResponseError reports whether the code is an HTTP 4xx
// response error.
func (c ErrorCode) IsClientResponseError() bool { return c >= 400 && c <= 499 }

// IsServerResponseError reports whether the code is an HTTP 5xx
// response error.
func (c ErrorCode) IsServerResponseError() bool { return c >= 500 && c <= 599 }

// IsResponseError reports whether the code mirrors an HTTP response
// status.
func (c ErrorCode) IsResponseError() bool { return c >= 300 && c <= 599 }

// IsUnauthorized reports whether the code is HTTP 401, the trigger for
// a token refresh on authenticated sessions.
func (c ErrorCode) IsUnauthorized() bool { return c == 401 }

// CorrectiveAction suggests what the integrator can do about an error.
type CorrectiveAction int

const (
	CorrectiveActionUnknown CorrectiveAction = iota
	CorrectiveActionBadRequest
	CorrectiveActionReauthenticate
	CorrectiveActionForbidden
	CorrectiveActionNotFound
	CorrectiveActionRetry
)

// String returns a stable label for logging.
func (a CorrectiveAction) String() string {
	switch a {
	case CorrectiveActionBadRequest:
		return "bad_request"
	case CorrectiveActionReauthenticate:
		return "reauthenticate"
	case CorrectiveActionForbidden:
		return "forbidden"
	case CorrectiveActionNotFound:
		return "not_found"
	case CorrectiveActionRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// CorrectiveAction maps the code to a suggested corrective action.
func (c ErrorCode) CorrectiveAction() CorrectiveAction {
	switch c {
	case 400:
		return CorrectiveActionBadRequest
	case 401:
		return CorrectiveActionReauthenticate
	case 403, CodeClearConversationFailure:
		return CorrectiveActionForbidden
	case 404:
		return CorrectiveActionNotFound
	case 408, 429, CodeRequestRateTooHigh:
		return CorrectiveActionRetry
	default:
		return CorrectiveActionUnknown
	}
}

// Canned error messages surfaced through state changes and events.
const (
	errMessageFailedToReconnect         = "Failed to reconnect."
	errMessageFailedToConfigureSession  = "Failed to configure session."
	errMessageNetworkDisabled           = "Network is disabled. Check the device connection and try again."
	errMessageFailedToClearConversation = "Failed to clear the conversation."
)

// StateError reports an operation attempted in a session state that
// does not allow it.
type StateError struct {
	// Operation is the rejected operation.
	Operation string
	// State is the session state at the time of the call.
	State StateKind
}

func (e *StateError) Error() string {
	return fmt.Sprintf("messenger: %s is not allowed in state %s", e.Operation, e.State)
}

// AuthError reports a failed authentication operation.
type AuthError struct {
	// Code classifies the failure.
	Code ErrorCode
	// Message is the failure detail.
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("messenger: auth: %s", e.Message)
}
