package dispatch

import (
	"github.com/modemstack/smsdispatch/internal/radio"
)

// Result is the outcome taxonomy reported to callers. Every submission
// attempt, gate rejection and carrier verdict folds into one of these.
type Result int

const (
	ResultOK Result = iota

	// Validation and admission failures.
	ResultGenericFailure
	ResultNullPDU
	ResultLimitExceeded

	// Consent failures.
	ResultShortCodeNotAllowed
	ResultShortCodeNeverAllowed
	ResultUnexpectedStopSending

	// Service availability.
	ResultRadioOff
	ResultNoService
	ResultBlockedDuringEmergency

	// Radio submission failures.
	ResultSendRetryFailed
	ResultNetworkReject
	ResultInvalidArguments
	ResultInvalidState
	ResultNoMemory
	ResultRateLimited
	ResultInvalidSMSFormat
	ResultSystemError
	ResultEncodingError
	ResultInvalidSMSCAddress
	ResultModemError
	ResultNetworkError
	ResultInternalError
	ResultRequestNotSupported
	ResultOperationNotAllowed
	ResultNoResources
	ResultCancelled
	ResultSimAbsent
	ResultAccessBarred
	ResultBlockedDueToCall
	ResultFDNCheckFailure
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultGenericFailure:
		return "generic_failure"
	case ResultNullPDU:
		return "null_pdu"
	case ResultLimitExceeded:
		return "limit_exceeded"
	case ResultShortCodeNotAllowed:
		return "short_code_not_allowed"
	case ResultShortCodeNeverAllowed:
		return "short_code_never_allowed"
	case ResultUnexpectedStopSending:
		return "unexpected_stop_sending"
	case ResultRadioOff:
		return "radio_off"
	case ResultNoService:
		return "no_service"
	case ResultBlockedDuringEmergency:
		return "blocked_during_emergency"
	case ResultSendRetryFailed:
		return "send_retry_failed"
	case ResultNetworkReject:
		return "network_reject"
	case ResultInvalidArguments:
		return "invalid_arguments"
	case ResultInvalidState:
		return "invalid_state"
	case ResultNoMemory:
		return "no_memory"
	case ResultRateLimited:
		return "rate_limited"
	case ResultInvalidSMSFormat:
		return "invalid_sms_format"
	case ResultSystemError:
		return "system_error"
	case ResultEncodingError:
		return "encoding_error"
	case ResultInvalidSMSCAddress:
		return "invalid_smsc_address"
	case ResultModemError:
		return "modem_error"
	case ResultNetworkError:
		return "network_error"
	case ResultInternalError:
		return "internal_error"
	case ResultRequestNotSupported:
		return "request_not_supported"
	case ResultOperationNotAllowed:
		return "operation_not_allowed"
	case ResultNoResources:
		return "no_resources"
	case ResultCancelled:
		return "cancelled"
	case ResultSimAbsent:
		return "sim_absent"
	case ResultAccessBarred:
		return "access_barred"
	case ResultBlockedDueToCall:
		return "blocked_due_to_call"
	case ResultFDNCheckFailure:
		return "fdn_check_failure"
	default:
		return "unknown"
	}
}

// resultFromCommandError maps the radio channel's classified errors onto
// the caller-facing taxonomy.
func resultFromCommandError(err radio.CommandError) Result {
	switch err {
	case radio.ErrNone:
		return ResultOK
	case radio.ErrRadioNotAvailable:
		return ResultRadioOff
	case radio.ErrSendFailRetry:
		return ResultSendRetryFailed
	case radio.ErrNetworkReject:
		return ResultNetworkReject
	case radio.ErrInvalidState, radio.ErrInvalidModemState:
		return ResultInvalidState
	case radio.ErrInvalidArguments:
		return ResultInvalidArguments
	case radio.ErrNoMemory:
		return ResultNoMemory
	case radio.ErrRequestRateLimited:
		return ResultRateLimited
	case radio.ErrInvalidSMSFormat:
		return ResultInvalidSMSFormat
	case radio.ErrSystem:
		return ResultSystemError
	case radio.ErrEncoding:
		return ResultEncodingError
	case radio.ErrInvalidSMSCAddress:
		return ResultInvalidSMSCAddress
	case radio.ErrModem:
		return ResultModemError
	case radio.ErrNetwork, radio.ErrNetworkNotReady:
		return ResultNetworkError
	case radio.ErrInternal:
		return ResultInternalError
	case radio.ErrRequestNotSupported:
		return ResultRequestNotSupported
	case radio.ErrOperationNotAllowed:
		return ResultOperationNotAllowed
	case radio.ErrNoResources:
		return ResultNoResources
	case radio.ErrCancelled:
		return ResultCancelled
	case radio.ErrSimAbsent:
		return ResultSimAbsent
	case radio.ErrAccessBarred:
		return ResultAccessBarred
	case radio.ErrBlockedDueToCall:
		return ResultBlockedDueToCall
	case radio.ErrFDNCheckFailure:
		return ResultFDNCheckFailure
	default:
		return ResultGenericFailure
	}
}

// transient reports whether a submission failure is eligible for bounded
// retry through the radio path.
func transient(err radio.CommandError) bool {
	switch err {
	case radio.ErrSendFailRetry, radio.ErrInternal, radio.ErrSystem,
		radio.ErrNetwork, radio.ErrModem, radio.ErrRequestRateLimited:
		return true
	default:
		return false
	}
}

// reportableFailure filters out the failure results whose cause is already
// known and expected, so only genuinely unexpected ones reach the anomaly
// sink.
func reportableFailure(r Result) bool {
	switch r {
	case ResultNoService, ResultRadioOff, ResultLimitExceeded,
		ResultShortCodeNeverAllowed, ResultShortCodeNotAllowed,
		ResultBlockedDuringEmergency:
		return false
	default:
		return true
	}
}
