package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linxGnu/gosmpp"
	"github.com/linxGnu/gosmpp/data"
	"github.com/linxGnu/gosmpp/pdu"
)

// Compile-time check
var _ Channel = (*SMPPChannel)(nil)

// SMPPConfig holds the connection settings for a gateway deployment where
// the radio boundary is an SMPP SMSC instead of a modem HAL.
type SMPPConfig struct {
	Host           string
	Port           int
	SystemID       string
	Password       string
	SystemType     string
	SourceAddr     string
	EnquireLink    time.Duration
	RequestTimeout time.Duration
	WindowSize     uint
	SourceAddrTON  byte
	SourceAddrNPI  byte
	DestAddrTON    byte
	DestAddrNPI    byte
}

// SMPPChannel implements Channel over a transmitter SMPP session. Each
// Submit maps to one SubmitSM; the resolve callback fires from the session's
// windowed-response handler when the SubmitSMResp (or its expiry) arrives.
type SMPPChannel struct {
	cfg     SMPPConfig
	session *gosmpp.Session
	connMu  sync.Mutex
	pending sync.Map // uint32 sequence -> func(Result)
}

func NewSMPPChannel(cfg SMPPConfig) (*SMPPChannel, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.SystemID == "" {
		return nil, errors.New("missing required SMPP config fields (Host, Port, SystemID)")
	}
	if cfg.EnquireLink <= 0 {
		cfg.EnquireLink = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10
	}
	return &SMPPChannel{cfg: cfg}, nil
}

// Connect establishes and binds the transmitter session.
func (c *SMPPChannel) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.session != nil {
		return errors.New("session already active")
	}

	auth := gosmpp.Auth{
		SMSC:       fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port),
		SystemID:   c.cfg.SystemID,
		Password:   c.cfg.Password,
		SystemType: c.cfg.SystemType,
	}

	settings := gosmpp.Settings{
		EnquireLink:  c.cfg.EnquireLink,
		ReadTimeout:  c.cfg.RequestTimeout + 5*time.Second,
		WriteTimeout: c.cfg.RequestTimeout,

		WindowedRequestTracking: &gosmpp.WindowedRequestTracking{
			MaxWindowSize:         uint8(c.cfg.WindowSize),
			PduExpireTimeOut:      c.cfg.RequestTimeout,
			ExpireCheckTimer:      5 * time.Second,
			EnableAutoRespond:     false,
			OnExpectedPduResponse: c.onExpectedResponse,
			OnExpiredPduRequest:   c.onExpiredRequest,
			OnClosePduRequest:     c.onClosedRequest,
		},

		OnSubmitError:    c.onSubmitError,
		OnReceivingError: c.onReceivingError,
		OnClosed:         c.onClosed,
	}

	sess, err := gosmpp.NewSession(gosmpp.TXConnector(gosmpp.NonTLSDialer, auth), settings, 5*time.Second)
	if err != nil {
		slog.ErrorContext(ctx, "SMPP session creation failed", slog.Any("error", err))
		return fmt.Errorf("gosmpp.NewSession failed: %w", err)
	}
	c.session = sess
	slog.InfoContext(ctx, "SMPP session established",
		slog.String("host", c.cfg.Host),
		slog.Int("port", c.cfg.Port),
		slog.String("system_id", c.cfg.SystemID),
	)
	return nil
}

// Close unbinds and releases the session. Pending submissions resolve via
// the OnClosePduRequest handler.
func (c *SMPPChannel) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func (c *SMPPChannel) Submit(sub Submission, resolve func(Result)) {
	c.connMu.Lock()
	sess := c.session
	c.connMu.Unlock()

	if sess == nil {
		go resolve(Result{Err: ErrRadioNotAvailable})
		return
	}

	p, err := c.buildSubmitSM(sub)
	if err != nil {
		slog.Warn("failed to build SubmitSM", slog.Any("error", err), slog.String("dest", sub.Dest))
		go resolve(Result{Err: ErrEncoding})
		return
	}

	seq := p.GetSequenceNumber()
	c.pending.Store(seq, resolve)

	if err := sess.Transmitter().Submit(p); err != nil {
		c.pending.Delete(seq)
		slog.Warn("SubmitSM submission failed", slog.Any("error", err), slog.String("dest", sub.Dest))
		if errors.Is(err, gosmpp.ErrWindowsFull) {
			go resolve(Result{Err: ErrRequestRateLimited})
		} else {
			go resolve(Result{Err: ErrNetwork})
		}
	}
}

func (c *SMPPChannel) buildSubmitSM(sub Submission) (*pdu.SubmitSM, error) {
	p := pdu.NewSubmitSM().(*pdu.SubmitSM)

	srcAddr := pdu.NewAddress()
	srcAddr.SetTon(c.cfg.SourceAddrTON)
	srcAddr.SetNpi(c.cfg.SourceAddrNPI)
	if err := srcAddr.SetAddress(c.cfg.SourceAddr); err != nil {
		return nil, fmt.Errorf("invalid source address %q: %w", c.cfg.SourceAddr, err)
	}
	p.SourceAddr = srcAddr

	destAddr := pdu.NewAddress()
	destAddr.SetTon(c.cfg.DestAddrTON)
	destAddr.SetNpi(c.cfg.DestAddrNPI)
	if err := destAddr.SetAddress(sub.Dest); err != nil {
		return nil, fmt.Errorf("invalid destination address %q: %w", sub.Dest, err)
	}
	p.DestAddr = destAddr

	coding := data.GSM7BIT
	if sub.UCS2 {
		coding = data.UCS2
	}
	if err := p.Message.SetMessageWithEncoding(sub.Text, coding); err != nil {
		return nil, fmt.Errorf("failed to set message content: %w", err)
	}

	p.ProtocolID = 0
	p.RegisteredDelivery = 0
	if sub.StatusReport {
		p.RegisteredDelivery = 1
	}
	p.ReplaceIfPresentFlag = 0
	p.EsmClass = 0
	return p, nil
}

func (c *SMPPChannel) onExpectedResponse(response gosmpp.Response) {
	reqPDU := response.OriginalRequest.PDU
	resp, ok := response.PDU.(*pdu.SubmitSMResp)
	if !ok {
		return
	}

	val, loaded := c.pending.LoadAndDelete(reqPDU.GetSequenceNumber())
	if !loaded {
		slog.Warn("SubmitSMResp for unknown sequence number",
			slog.Uint64("seq", uint64(reqPDU.GetSequenceNumber())))
		return
	}
	resolve := val.(func(Result))

	status := resp.CommandStatus
	if status == data.ESME_ROK {
		resolve(Result{AckRef: int(reqPDU.GetSequenceNumber() & 0xFF)})
		return
	}
	slog.Warn("SubmitSM rejected by SMSC",
		slog.String("status", status.Desc()),
		slog.Uint64("status_code", uint64(status)),
	)
	resolve(Result{Err: commandErrorFromSMPPStatus(status), ErrorCode: int(status)})
}

func (c *SMPPChannel) onExpiredRequest(p pdu.PDU) bool {
	if _, ok := p.(*pdu.SubmitSM); !ok {
		return false
	}
	if val, loaded := c.pending.LoadAndDelete(p.GetSequenceNumber()); loaded {
		val.(func(Result))(Result{Err: ErrNetwork})
	}
	return false
}

func (c *SMPPChannel) onClosedRequest(p pdu.PDU) {
	if val, loaded := c.pending.LoadAndDelete(p.GetSequenceNumber()); loaded {
		val.(func(Result))(Result{Err: ErrRadioNotAvailable})
	}
}

func (c *SMPPChannel) onSubmitError(p pdu.PDU, err error) {
	slog.Warn("SMPP submit error", slog.Any("error", err),
		slog.Uint64("seq", uint64(p.GetSequenceNumber())))
}

func (c *SMPPChannel) onReceivingError(err error) {
	slog.Error("SMPP receiving error", slog.Any("error", err))
}

func (c *SMPPChannel) onClosed(state gosmpp.State) {
	slog.Warn("SMPP session closed", slog.String("final_state", state.String()))
}

// SMPP command status values (SMPP 3.4 §5.1.3).
const (
	esmeRSysErr     = 0x08
	esmeRInvSrcAdr  = 0x0A
	esmeRInvDstAdr  = 0x0B
	esmeRMsgQFul    = 0x14
	esmeRSubmitFail = 0x45
	esmeRThrottled  = 0x58
)

// commandErrorFromSMPPStatus folds SMSC command statuses into the channel's
// error space so the retry policy treats gateway rejections the same way it
// treats modem ones.
func commandErrorFromSMPPStatus(status data.CommandStatusType) CommandError {
	switch uint32(status) {
	case esmeRThrottled:
		return ErrRequestRateLimited
	case esmeRMsgQFul:
		return ErrNoMemory
	case esmeRInvDstAdr, esmeRInvSrcAdr:
		return ErrInvalidArguments
	case esmeRSubmitFail:
		return ErrSendFailRetry
	case esmeRSysErr:
		return ErrSystem
	default:
		return ErrNetworkReject
	}
}
