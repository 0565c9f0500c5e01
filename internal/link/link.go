package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
	"github.com/xvzf/amasp/pkg/eventbus"
	"github.com/xvzf/amasp/pkg/log"
	"github.com/xvzf/amasp/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InboundTopic is the event bus topic every received packet is published on.
const InboundTopic = "amasp:inbound"

var (
	ErrRequestInFlight = errors.New("request to device already in flight")
	ErrRequestTimeout  = errors.New("request timed out")
	ErrWrongRole       = errors.New("operation not available in this role")
)

// RemoteError is a communication error packet (CEP) received in place of a
// response, or returned by a Handler to make the link answer with a CEP.
type RemoteError struct {
	DeviceID uint16
	Code     uint8
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("device %03X reported error code %02X", e.DeviceID, e.Code)
}

// Handler produces the response payload for a request (MRP).
type Handler func(ctx context.Context, req proto.Packet) ([]byte, error)

// EchoHandler answers every request with its own payload.
func EchoHandler(_ context.Context, req proto.Packet) ([]byte, error) {
	return req.Payload, nil
}

// Link binds one role to one port. It reads packets, hands responses to
// pending requests and publishes everything it receives on the event bus.
type Link struct {
	cfg  Config
	kind proto.ChecksumKind
	port *transport.Port

	master *amasp.Master
	slave  *amasp.Slave

	eb      eventbus.EventBus[proto.Packet]
	pending *xsync.MapOf[uint16, chan proto.Packet]
	state   *linkState
	handler Handler
	served  map[uint16]bool

	// requests queues MRPs for the serve loop, one slot per device id
	requests chan proto.Packet

	// peer is the in-process slave behind a simulated port
	peer *Link
}

// New opens the configured port and returns a link ready to Run.
func New(ctx context.Context, cfg Config) (*Link, error) {
	cfg = cfg.withDefaults()
	if _, err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Port == SimulatedPort {
		log.FromContext(ctx).Warn("Using simulated port, requests are answered by an in-process echo slave")
		local, remote := transport.Pipe()
		peerCfg := cfg
		peerCfg.Port = SimulatedPort + ":peer"
		peerCfg.Role = RoleSlave
		peerCfg.Echo = true
		peerCfg.Poll = nil
		peerCfg.Devices = nil
		peer, err := NewWithPort(peerCfg, remote)
		if err != nil {
			return nil, errors.Join(err, local.Close(), remote.Close())
		}
		l, err := NewWithPort(cfg, local)
		if err != nil {
			return nil, errors.Join(err, local.Close(), remote.Close())
		}
		l.peer = peer
		return l, nil
	}

	port, err := transport.OpenSerial(cfg.Port, cfg.Serial)
	if err != nil {
		return nil, err
	}
	l, err := NewWithPort(cfg, port)
	if err != nil {
		return nil, errors.Join(err, port.Close())
	}
	return l, nil
}

// NewWithPort returns a link on an already opened port. The link owns the port.
func NewWithPort(cfg Config, port *transport.Port) (*Link, error) {
	cfg = cfg.withDefaults()
	if cfg.Port == "" {
		cfg.Port = "external"
	}
	kind, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	l := &Link{
		cfg:     cfg,
		kind:    kind,
		port:    port,
		eb:      eventbus.New[proto.Packet](),
		pending: xsync.NewMapOf[uint16, chan proto.Packet](),
		state:   newLinkState(),
		handler: defaultHandler,
	}
	switch cfg.Role {
	case RoleMaster:
		l.master = amasp.NewMaster(port, kind)
	case RoleSlave:
		l.slave = amasp.NewSlave(port, kind)
		l.requests = make(chan proto.Packet, proto.MaxDeviceID+1)
		if cfg.Echo {
			l.handler = EchoHandler
		}
		if len(cfg.Devices) > 0 {
			l.served = make(map[uint16]bool, len(cfg.Devices))
			for _, id := range cfg.Devices {
				l.served[id] = true
			}
		}
	}
	return l, nil
}

func defaultHandler(_ context.Context, _ proto.Packet) ([]byte, error) {
	return nil, errors.New("no handler installed")
}

// Role returns the role the link was configured with.
func (l *Link) Role() Role {
	return l.cfg.Role
}

// ChecksumKind returns the error check algorithm of outgoing packets.
func (l *Link) ChecksumKind() proto.ChecksumKind {
	return l.kind
}

// Handle installs the handler answering requests. It must be called before Run.
func (l *Link) Handle(h Handler) {
	if h == nil {
		h = defaultHandler
	}
	l.handler = h
}

// Run reads from the port and, depending on the role, polls devices or
// serves requests. It blocks until the context is canceled or the port fails.
func (l *Link) Run(parentCtx context.Context) error {
	ctx := log.With(parentCtx, zap.String("role", string(l.cfg.Role)), zap.String("port", l.cfg.Port))
	log.FromContext(ctx).Info("Starting link", zap.Stringer("checksum", l.kind))
	linkRole.WithLabelValues(string(l.cfg.Role)).Set(1)
	defer linkRole.WithLabelValues(string(l.cfg.Role)).Set(0)

	wg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Go(func() error {
		// Nothing else can make progress once reading stopped
		defer cancel()
		log.FromContext(ctx).Info("Starting read loop")
		return l.readLoop(ctx)
	})

	if l.requests != nil {
		wg.Go(func() error {
			log.FromContext(ctx).Info("Starting serve loop")
			return l.serve(ctx)
		})
	}

	for _, p := range l.cfg.Poll {
		poll := p
		wg.Go(func() error {
			return l.pollDevice(ctx, poll)
		})
	}

	if l.peer != nil {
		wg.Go(func() error {
			if err := l.peer.Run(log.Named(ctx, "sim")); ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		log.FromContext(ctx).Error("Link failed", zap.Error(err))
		return err
	}
	log.FromContext(ctx).Info("Link stopped")
	return parentCtx.Err()
}

// readLoop decodes packets until the context is done or the port failed.
// A closed port or a done context end the loop without error.
func (l *Link) readLoop(ctx context.Context) error {
	reader := proto.NewReader(proto.ReaderOpts{
		Timeout:      l.cfg.ReadTimeout,
		PollInterval: l.cfg.PollInterval,
		OnDiscard: func(reason error) {
			if errors.Is(reason, proto.ErrNoData) {
				return
			}
			framesDiscarded.WithLabelValues(reason.Error()).Inc()
			log.FromContext(ctx).Debug("Discarded frame", zap.Error(reason))
		},
	})

	for {
		pkt, err := reader.ReadPacket(ctx, l.port)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if portErr := l.port.Err(); portErr != nil && l.port.Buffered() == 0 {
				if errors.Is(portErr, transport.ErrClosed) {
					return nil
				}
				return fmt.Errorf("port failed: %w", portErr)
			}
			readTimeouts.Inc()
			continue
		}

		packetsReceived.WithLabelValues(pkt.Kind.String()).Inc()
		log.FromContext(ctx).Debug("Received packet", zap.Stringer("packet", pkt))
		l.state.RegisterPacket(pkt)
		l.deliver(pkt)
		l.enqueue(ctx, pkt)
		l.eb.Publish(InboundTopic, pkt)
	}
}

// enqueue hands a request to the serve loop. It never blocks the read loop,
// a request arriving while the queue is full is dropped and counted.
func (l *Link) enqueue(ctx context.Context, pkt proto.Packet) {
	if l.requests == nil || pkt.Kind != proto.KindMRP {
		return
	}
	select {
	case l.requests <- pkt:
	default:
		requestsDropped.Inc()
		log.FromContext(ctx).Warn("Request queue full, dropping request", zap.Uint16("device_id", pkt.DeviceID))
	}
}

// deliver hands a response or error packet to the request waiting for it.
func (l *Link) deliver(pkt proto.Packet) {
	if l.master == nil || (pkt.Kind != proto.KindSRP && pkt.Kind != proto.KindCEP) {
		return
	}
	if ch, ok := l.pending.LoadAndDelete(pkt.DeviceID); ok {
		ch <- pkt
	}
}

// Request sends payload to a device and waits for its response. A CEP
// received in place of a response is returned as *RemoteError.
func (l *Link) Request(ctx context.Context, deviceID uint16, payload []byte) (proto.Packet, error) {
	if l.master == nil {
		return proto.Packet{}, fmt.Errorf("request: %w", ErrWrongRole)
	}

	ch := make(chan proto.Packet, 1)
	if _, loaded := l.pending.LoadOrStore(deviceID, ch); loaded {
		requestsFailed.WithLabelValues("in_flight").Inc()
		return proto.Packet{}, ErrRequestInFlight
	}
	defer l.pending.Compute(deviceID, func(old chan proto.Packet, loaded bool) (chan proto.Packet, bool) {
		// Only remove our own registration
		return old, !loaded || old == ch
	})

	start := time.Now()
	_, err := l.master.SendRequest(ctx, deviceID, payload, len(payload))
	l.sent(ctx, proto.KindMRP, err)
	if err != nil {
		requestsFailed.WithLabelValues("send").Inc()
		return proto.Packet{}, fmt.Errorf("sending request: %w", err)
	}

	timer := time.NewTimer(l.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		requestsFailed.WithLabelValues("canceled").Inc()
		return proto.Packet{}, ctx.Err()
	case <-timer.C:
		requestsFailed.WithLabelValues("timeout").Inc()
		return proto.Packet{}, fmt.Errorf("device %03X: %w", deviceID, ErrRequestTimeout)
	case pkt := <-ch:
		requestDuration.Observe(time.Since(start).Seconds())
		if pkt.Kind == proto.KindCEP {
			requestsFailed.WithLabelValues("remote").Inc()
			return pkt, &RemoteError{DeviceID: pkt.DeviceID, Code: pkt.Code}
		}
		return pkt, nil
	}
}

// Interrupt sends a SIP on behalf of a device (slave).
func (l *Link) Interrupt(ctx context.Context, deviceID uint16, code uint8) error {
	if l.slave == nil {
		return fmt.Errorf("interrupt: %w", ErrWrongRole)
	}
	_, err := l.slave.SendInterruption(ctx, deviceID, code)
	l.sent(ctx, proto.KindSIP, err)
	return err
}

// SendError sends a CEP. Both roles may report communication errors.
func (l *Link) SendError(ctx context.Context, deviceID uint16, code uint8) error {
	var err error
	if l.master != nil {
		_, err = l.master.SendError(ctx, deviceID, code)
	} else {
		_, err = l.slave.SendError(ctx, deviceID, code)
	}
	l.sent(ctx, proto.KindCEP, err)
	return err
}

// Subscribe returns a subscriber receiving inbound packets matching filter.
// A nil filter matches everything.
func (l *Link) Subscribe(bufSize int, filter func(proto.Packet) bool) eventbus.Subscriber[proto.Packet] {
	return l.eb.Subscribe(InboundTopic, bufSize, filter)
}

// WaitForInterrupt blocks until the next interrupt of a device arrives and returns its code.
func (l *Link) WaitForInterrupt(ctx context.Context, deviceID uint16) (uint8, error) {
	return l.state.WaitForInterrupt(ctx, deviceID)
}

// Device returns what the link observed from a device so far.
func (l *Link) Device(deviceID uint16) (DeviceStatus, bool) {
	return l.state.Device(deviceID)
}

// Close closes the port, and the simulated peer if there is one.
func (l *Link) Close() error {
	var peerErr error
	if l.peer != nil {
		peerErr = l.peer.Close()
	}
	return errors.Join(l.port.Close(), peerErr)
}

func (l *Link) sent(ctx context.Context, kind proto.PacketKind, err error) {
	if err != nil {
		log.FromContext(ctx).Error("Failed to send packet", zap.Stringer("kind", kind), zap.Error(err))
		return
	}
	packetsSent.WithLabelValues(kind.String()).Inc()
}
