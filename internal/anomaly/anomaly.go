// Package anomaly routes protocol-violation reports to an operator-facing
// sink. Each defect class carries a stable UUID so occurrences can be
// aggregated across devices and releases.
package anomaly

import (
	"log/slog"

	"github.com/google/uuid"
)

var (
	// NoCarrierResponse fires when a carrier messaging service accepts a
	// batch but never calls back within the response timeout.
	NoCarrierResponse = uuid.MustParse("279d9fbc-462d-4fc2-802c-bf21ddd9dd90")

	// UnexpectedCarrierCallback fires when a carrier messaging service
	// invokes its result callback more than once for the same batch.
	UnexpectedCarrierCallback = uuid.MustParse("0103b6d2-ad07-4d86-9102-14341b9074ef")

	// UnexpectedRadioError is the base id for unclassified submission
	// failures; the concrete result and sub-code are folded into it.
	UnexpectedRadioError = uuid.MustParse("43043600-ea7a-44d2-9ae6-a58567ac7886")
)

// Reporter receives anomaly reports. Implementations must be safe for
// concurrent use; reports can originate from carrier callbacks as well as
// the dispatch loop.
type Reporter interface {
	Report(id uuid.UUID, desc string)
}

// WithCode derives a defect id from a base id and a (result, sub-code)
// pair, keeping distinct failure shapes distinct in aggregation.
func WithCode(base uuid.UUID, result, code int) uuid.UUID {
	lo := binaryLow(base) + (uint64(uint32(code))<<32 + uint64(uint32(result)))
	var out uuid.UUID
	copy(out[:8], base[:8])
	for i := 0; i < 8; i++ {
		out[15-i] = byte(lo >> (8 * i))
	}
	return out
}

func binaryLow(id uuid.UUID) uint64 {
	var lo uint64
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(id[i])
	}
	return lo
}

// Compile-time check
var _ Reporter = (*LogReporter)(nil)

// LogReporter writes anomalies to the default logger.
type LogReporter struct{}

func (LogReporter) Report(id uuid.UUID, desc string) {
	slog.Error("anomaly reported", slog.String("defect_id", id.String()), slog.String("desc", desc))
}
