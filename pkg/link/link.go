// Package link owns one bidirectional binary-framed session with one
// vehicle (§4.1). It normalizes wire units, tracks connect/disconnect
// state from heartbeat liveness, and exposes a typed outbound event
// stream to any number of subscribers.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
)

// LinkOpenError is returned by Open when the transport refuses to open.
type LinkOpenError struct {
	Endpoint string
	Cause    error
}

func (e *LinkOpenError) Error() string {
	return fmt.Sprintf("link: failed to open %s: %v", e.Endpoint, e.Cause)
}

func (e *LinkOpenError) Unwrap() error { return e.Cause }

// LinkNotOpenError is returned by Send when the Link is not open.
type LinkNotOpenError struct {
	VehicleID int
}

func (e *LinkNotOpenError) Error() string {
	return fmt.Sprintf("link: vehicle %d is not open", e.VehicleID)
}

// State is the connection state of a Link (§3 Vehicle.link state).
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateSimulated    State = "simulated"
)

// SimulatedEndpoint is the sentinel endpoint value that selects the
// in-process synthetic transport instead of a real serial port (§4.1).
const SimulatedEndpoint = "simulated"

// Config configures one Link.
type Config struct {
	VehicleID         int
	Endpoint          string
	Baud              int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// SourceSystemID/SourceComponentID identify us as a ground station
	// (§6.1 default 255/190).
	SourceSystemID    uint8
	SourceComponentID uint8
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = time.Second
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 3 * time.Second
	}
	if c.SourceSystemID == 0 {
		c.SourceSystemID = 255
	}
	if c.SourceComponentID == 0 {
		c.SourceComponentID = 190
	}
	if c.Baud == 0 {
		c.Baud = 57600
	}
}

// transport is the low-level send/receive primitive a Link delegates to.
// realTransport backs it with gomavlib + go.bug.st/serial; simTransport
// backs it with an in-process synthetic vehicle.
type transport interface {
	open(ctx context.Context, onEvent func(Event)) error
	writeHeartbeat() error
	writeCommandLong(cmd uint16, p1, p2, p3, p4, p5, p6, p7 float32) error
	writeMissionCount(count uint16) error
	writeMissionItem(item MissionItem) error
	close() error
}

// Link owns one session with one vehicle.
type Link struct {
	cfg Config

	mu              sync.RWMutex
	state           State
	targetSystemID  uint8
	targetComponent uint8
	lastHeartbeat   time.Time

	seq uint32 // mod-256 outgoing packet counter (§3 invariant)

	transport transport

	subMu sync.Mutex
	subs  map[int]chan Event
	nextSubID int

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Link for vehicleID against endpoint/baud. The transport is
// selected at Open time based on cfg.Endpoint.
func New(cfg Config) *Link {
	cfg.applyDefaults()
	return &Link{
		cfg:             cfg,
		state:           StateDisconnected,
		targetSystemID:  1,
		targetComponent: 1,
		subs:            make(map[int]chan Event),
	}
}

// Endpoint returns the configured endpoint.
func (l *Link) Endpoint() string { return l.cfg.Endpoint }

// Baud returns the configured baud rate.
func (l *Link) Baud() int { return l.cfg.Baud }

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Sequence returns the current value of the mod-256 outgoing packet
// counter.
func (l *Link) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&l.seq) % 256)
}

// Open opens the transport (real or simulated, per cfg.Endpoint) and
// starts the read and heartbeat loops.
func (l *Link) Open(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateConnected || l.state == StateConnecting || l.state == StateSimulated {
		l.mu.Unlock()
		return nil
	}
	l.state = StateConnecting
	l.mu.Unlock()

	var t transport
	if l.cfg.Endpoint == SimulatedEndpoint {
		t = newSimTransport(l.cfg)
	} else {
		t = newRealTransport(l.cfg)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	if err := t.open(runCtx, l.dispatch); err != nil {
		cancel()
		l.mu.Lock()
		l.state = StateDisconnected
		l.mu.Unlock()
		return &LinkOpenError{Endpoint: l.cfg.Endpoint, Cause: err}
	}

	l.mu.Lock()
	l.transport = t
	l.cancel = cancel
	l.done = done
	if l.cfg.Endpoint == SimulatedEndpoint {
		l.state = StateSimulated
	} else {
		l.state = StateConnecting
	}
	l.lastHeartbeat = time.Now()
	l.mu.Unlock()

	go l.heartbeatLoop(runCtx, done)

	return nil
}

// SendCommandLong enqueues a CommandLong packet. Fails with LinkNotOpenError when the
// session is not open.
func (l *Link) SendCommandLong(cmd uint16, p1, p2, p3, p4, p5, p6, p7 float32) error {
	t, err := l.requireTransport()
	if err != nil {
		return err
	}
	atomic.AddUint32(&l.seq, 1)
	return t.writeCommandLong(cmd, p1, p2, p3, p4, p5, p6, p7)
}

// SendMissionCount begins a mission upload handshake (§4.6).
func (l *Link) SendMissionCount(count uint16) error {
	t, err := l.requireTransport()
	if err != nil {
		return err
	}
	atomic.AddUint32(&l.seq, 1)
	return t.writeMissionCount(count)
}

// SendMissionItem sends the mission item requested by the peer's most
// recent mission-request (§4.6).
func (l *Link) SendMissionItem(item MissionItem) error {
	t, err := l.requireTransport()
	if err != nil {
		return err
	}
	atomic.AddUint32(&l.seq, 1)
	return t.writeMissionItem(item)
}

func (l *Link) requireTransport() (transport, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != StateConnected && l.state != StateSimulated {
		return nil, &LinkNotOpenError{VehicleID: l.cfg.VehicleID}
	}
	return l.transport, nil
}

// Close stops the loops and closes the transport. Idempotent.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.state == StateDisconnected {
		l.mu.Unlock()
		return nil
	}
	t := l.transport
	cancel := l.cancel
	done := l.done
	l.state = StateDisconnected
	l.transport = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}

	l.closeSubscribers()

	if t != nil {
		return t.close()
	}
	return nil
}

// Subscribe returns a channel of every Event the Link emits and a cancel
// function to stop receiving. Multiple independent subscribers are
// supported (Telemetry Aggregator, Command Router awaiting an ack,
// Mission Uploader awaiting a mission-request, all concurrently).
func (l *Link) Subscribe() (<-chan Event, func()) {
	l.subMu.Lock()
	id := l.nextSubID
	l.nextSubID++
	ch := make(chan Event, 64)
	l.subs[id] = ch
	l.subMu.Unlock()

	cancel := func() {
		l.subMu.Lock()
		if existing, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(existing)
		}
		l.subMu.Unlock()
	}
	return ch, cancel
}

func (l *Link) closeSubscribers() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

func (l *Link) broadcast(e Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			logger.Debug("link: dropping event, subscriber backlogged",
				logger.VehicleID(l.cfg.VehicleID))
		}
	}
}

// dispatch is the transport's event sink: it updates connection state on
// heartbeats/errors, then forwards every event to subscribers.
func (l *Link) dispatch(e Event) {
	switch e.Kind {
	case EventMessage:
		if e.Message != nil && e.Message.Kind == KindHeartbeat {
			l.mu.Lock()
			alreadySimulated := l.state == StateSimulated
			wasConnected := l.state == StateConnected
			if !alreadySimulated {
				l.state = StateConnected
			}
			l.targetSystemID = e.Message.SystemID
			l.targetComponent = e.Message.ComponentID
			l.lastHeartbeat = time.Now()
			l.mu.Unlock()
			if !alreadySimulated && !wasConnected {
				l.broadcast(Event{Kind: EventConnected})
			}
		}
	case EventDisconnected:
		l.mu.Lock()
		if l.state != StateSimulated {
			l.state = StateDisconnected
		}
		l.mu.Unlock()
	}
	l.broadcast(e)
}

func (l *Link) heartbeatLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.cfg.HeartbeatInterval)
	defer ticker.Stop()
	checkTicker := time.NewTicker(l.cfg.HeartbeatTimeout / 3)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.RLock()
			t := l.transport
			l.mu.RUnlock()
			if t == nil {
				continue
			}
			atomic.AddUint32(&l.seq, 1)
			if err := t.writeHeartbeat(); err != nil {
				logger.Debug("link: heartbeat send failed",
					logger.VehicleID(l.cfg.VehicleID), logger.Err(err))
			}
		case <-checkTicker.C:
			l.mu.RLock()
			since := time.Since(l.lastHeartbeat)
			state := l.state
			l.mu.RUnlock()
			if state == StateConnected && since > l.cfg.HeartbeatTimeout {
				l.mu.Lock()
				l.state = StateDisconnected
				l.mu.Unlock()
				l.broadcast(Event{Kind: EventDisconnected,
					Err: errors.New("heartbeat timeout")})
			}
		}
	}
}
