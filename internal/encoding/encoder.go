// Package encoding defines the PDU encoder boundary and a default
// implementation. Exact protocol bit layouts live behind this interface;
// the dispatcher only ever sees opaque byte sequences.
package encoding

import (
	"encoding/binary"

	"github.com/modemstack/smsdispatch/pkg/segmenter"
)

// SubmitPDU is one encoded segment ready for submission.
type SubmitPDU struct {
	Encoded     []byte
	EncodedSMSC []byte
	// Text carried by this segment, for backends that re-encode and for
	// persistence.
	Text string
	UCS2 bool
}

// ConcatInfo carries the concatenation header values of a multi-part
// segment. Seq is 1-based.
type ConcatInfo struct {
	Ref   int
	Seq   int
	Total int
}

// Encoder turns payloads into SubmitPDUs. Encode methods return (nil, nil)
// only on programmer error; a payload that cannot be encoded yields an
// error and the dispatcher fails the request without building a unit.
type Encoder interface {
	EncodeText(smsc, dest, text string, statusReport bool, validityPeriod int, msgRef int, concat *ConcatInfo) (*SubmitPDU, error)
	EncodeData(smsc, dest string, port int, data []byte, statusReport bool, msgRef int) (*SubmitPDU, error)
	Segment(text string) ([]string, error)
}

// Compile-time check
var _ Encoder = (*Default)(nil)

// Default encodes a compact framing sufficient for the loopback and gateway
// backends. It is not a 3GPP TS 23.040 bit-exact TPDU builder.
type Default struct {
	seg segmenter.Segmenter
}

func NewDefault() *Default {
	return &Default{seg: segmenter.NewDefaultSegmenter()}
}

const (
	frameText = 0x01
	frameData = 0x02
	flagSR    = 0x01
	flagUCS2  = 0x02
)

func (e *Default) EncodeText(smsc, dest, text string, statusReport bool, validityPeriod int, msgRef int, concat *ConcatInfo) (*SubmitPDU, error) {
	if dest == "" {
		return nil, errEmptyDest
	}
	if text == "" {
		return nil, errEmptyPayload
	}

	ucs2 := !isASCII(text)
	flags := byte(0)
	if statusReport {
		flags |= flagSR
	}
	if ucs2 {
		flags |= flagUCS2
	}

	buf := make([]byte, 0, 16+len(dest)+len(text))
	buf = append(buf, frameText, flags, byte(msgRef), byte(validityPeriod))
	if concat != nil {
		buf = append(buf, byte(concat.Ref), byte(concat.Seq), byte(concat.Total))
	} else {
		buf = append(buf, 0, 0, 0)
	}
	buf = appendString(buf, dest)
	buf = appendString(buf, text)

	return &SubmitPDU{
		Encoded:     buf,
		EncodedSMSC: encodeSMSC(smsc),
		Text:        text,
		UCS2:        ucs2,
	}, nil
}

func (e *Default) EncodeData(smsc, dest string, port int, data []byte, statusReport bool, msgRef int) (*SubmitPDU, error) {
	if dest == "" {
		return nil, errEmptyDest
	}
	if len(data) == 0 {
		return nil, errEmptyPayload
	}

	flags := byte(0)
	if statusReport {
		flags |= flagSR
	}
	buf := make([]byte, 0, 16+len(dest)+len(data))
	buf = append(buf, frameData, flags, byte(msgRef))
	buf = binary.BigEndian.AppendUint16(buf, uint16(port))
	buf = appendString(buf, dest)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
	buf = append(buf, data...)

	return &SubmitPDU{Encoded: buf, EncodedSMSC: encodeSMSC(smsc)}, nil
}

func (e *Default) Segment(text string) ([]string, error) {
	parts, _, err := e.seg.GetSegments(text)
	if err != nil {
		return nil, err
	}
	return parts, nil
}

func encodeSMSC(smsc string) []byte {
	if smsc == "" {
		return nil
	}
	return appendString(nil, smsc)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 0x7F {
			return false
		}
	}
	return true
}
