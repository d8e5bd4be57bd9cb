// Package carrier defines the boundary toward a carrier-supplied messaging
// service. When a carrier installs one, outbound batches are offered to it
// before the radio channel is used.
package carrier

// SendStatus is the carrier service's verdict on a batch.
type SendStatus int

const (
	SendStatusOK SendStatus = iota
	SendStatusError
	SendStatusRetryOnCarrierNetwork
	SendStatusNetworkReject
	SendStatusInvalidArguments
	SendStatusEncodingError
	SendStatusBlockedDuringEmergency
)

func (s SendStatus) String() string {
	switch s {
	case SendStatusOK:
		return "ok"
	case SendStatusError:
		return "error"
	case SendStatusRetryOnCarrierNetwork:
		return "retry_on_carrier_network"
	case SendStatusNetworkReject:
		return "network_reject"
	case SendStatusInvalidArguments:
		return "invalid_arguments"
	case SendStatusEncodingError:
		return "encoding_error"
	case SendStatusBlockedDuringEmergency:
		return "blocked_during_emergency"
	default:
		return "unknown"
	}
}

// SendResult resolves one send call. MessageRefs carries the network
// acknowledgement reference per part when the status is OK.
type SendResult struct {
	Status      SendStatus
	MessageRefs []int
}

// TextRequest is a single- or multi-part text batch offered to the service.
// Parts has exactly one element for a single-part send.
type TextRequest struct {
	Dest  string
	Parts []string
}

// DataRequest is a binary payload offered to the service.
type DataRequest struct {
	Dest string
	Port int
	Data []byte
}

// Service is an externally bound carrier messaging endpoint. Bind and the
// send calls are asynchronous; their callbacks may fire on any goroutine.
// Callers must Disconnect once a result (or a timeout of their own) has been
// observed.
type Service interface {
	Bind(identity string, done func(err error))
	SendText(req TextRequest, done func(SendResult))
	SendData(req DataRequest, done func(SendResult))
	Disconnect()
}

// Locator resolves the installed carrier messaging service for a
// subscription. A nil Service means none is installed and the radio channel
// should be used directly.
type Locator interface {
	Lookup(subID int) Service
}

// NoService is a Locator for deployments without a carrier service.
type NoService struct{}

func (NoService) Lookup(int) Service { return nil }
