package radio

// CommandError is the classified error space of the radio channel. ErrNone
// marks a successful submission.
type CommandError int

const (
	ErrNone CommandError = iota
	ErrRadioNotAvailable
	ErrSendFailRetry
	ErrNetworkReject
	ErrInvalidState
	ErrInvalidArguments
	ErrNoMemory
	ErrRequestRateLimited
	ErrInvalidSMSFormat
	ErrSystem
	ErrEncoding
	ErrInvalidSMSCAddress
	ErrModem
	ErrNetwork
	ErrInternal
	ErrRequestNotSupported
	ErrInvalidModemState
	ErrNetworkNotReady
	ErrOperationNotAllowed
	ErrNoResources
	ErrCancelled
	ErrSimAbsent
	ErrAccessBarred
	ErrBlockedDueToCall
	ErrFDNCheckFailure
)

func (e CommandError) String() string {
	switch e {
	case ErrNone:
		return "none"
	case ErrRadioNotAvailable:
		return "radio_not_available"
	case ErrSendFailRetry:
		return "send_fail_retry"
	case ErrNetworkReject:
		return "network_reject"
	case ErrInvalidState:
		return "invalid_state"
	case ErrInvalidArguments:
		return "invalid_arguments"
	case ErrNoMemory:
		return "no_memory"
	case ErrRequestRateLimited:
		return "request_rate_limited"
	case ErrInvalidSMSFormat:
		return "invalid_sms_format"
	case ErrSystem:
		return "system_err"
	case ErrEncoding:
		return "encoding_err"
	case ErrInvalidSMSCAddress:
		return "invalid_smsc_address"
	case ErrModem:
		return "modem_err"
	case ErrNetwork:
		return "network_err"
	case ErrInternal:
		return "internal_err"
	case ErrRequestNotSupported:
		return "request_not_supported"
	case ErrInvalidModemState:
		return "invalid_modem_state"
	case ErrNetworkNotReady:
		return "network_not_ready"
	case ErrOperationNotAllowed:
		return "operation_not_allowed"
	case ErrNoResources:
		return "no_resources"
	case ErrCancelled:
		return "cancelled"
	case ErrSimAbsent:
		return "sim_absent"
	case ErrAccessBarred:
		return "access_barred"
	case ErrBlockedDueToCall:
		return "blocked_due_to_call"
	case ErrFDNCheckFailure:
		return "fdn_check_failure"
	default:
		return "unknown"
	}
}

// Submission is one encoded segment handed to the channel. The PDU and SMSC
// byte sequences are opaque encoder output; gateway backends that speak a
// text protocol use the plain fields instead.
type Submission struct {
	Dest          string
	ServiceCenter string
	PDU           []byte
	SMSC          []byte
	Text          string
	UCS2          bool
	MessageRef    int
	Format        string
	StatusReport  bool
}

// Result resolves a Submission. AckRef is the network acknowledgement
// reference on success; ErrorCode is an optional carrier-specific sub-code
// accompanying Err.
type Result struct {
	AckRef    int
	Err       CommandError
	ErrorCode int
}

// Channel is the asynchronous submission boundary toward the radio
// subsystem. Submit never blocks; resolve is invoked exactly once, possibly
// on a different goroutine.
type Channel interface {
	Submit(sub Submission, resolve func(Result))
}
