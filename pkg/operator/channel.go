// Package operator implements the Operator Channel (C9): a bidirectional,
// length-prefixed JSON event channel to browser operator clients. It fans
// out telemetry and domain events to every connected client and routes
// inbound operator commands to the Command Router, Mission Uploader,
// Automated-Mission Orchestrator, and Spray Orchestrator.
//
// Each connection runs its own read/write goroutine pair with panic recovery
// and WaitGroup-tracked graceful shutdown (§4.9 Transport choice).
package operator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/command"
	"github.com/aerobridge/groundctl/pkg/detection"
	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/metrics"
	"github.com/aerobridge/groundctl/pkg/orchestrator"
	"github.com/aerobridge/groundctl/pkg/registry"
	"github.com/aerobridge/groundctl/pkg/spray"
)

// defaultTelemetryPollInterval is used when Deps.TelemetryPollInterval is
// zero (§6.4 telemetry_poll_interval default).
const defaultTelemetryPollInterval = 250 * time.Millisecond

// outboxCapacity is the per-client bounded fan-out queue. A slow client
// must not back-pressure producers or other clients (§4.9 fan-out
// semantics); once full, the oldest queued frame is dropped to admit the
// newest.
const outboxCapacity = 256

// session is one connected operator client (§3 OperatorSession).
type session struct {
	id   string
	conn net.Conn
	out  chan []byte
}

func newSession(id string, conn net.Conn) *session {
	return &session{id: id, conn: conn, out: make(chan []byte, outboxCapacity)}
}

// enqueue drops the oldest queued frame when the outbox is full, per the
// drop-oldest fan-out policy.
func (s *session) enqueue(frame []byte) {
	for {
		select {
		case s.out <- frame:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

// Channel is the Operator Channel server.
type Channel struct {
	reg       *registry.Registry
	router    *command.Router
	missions  *orchestrator.Orchestrator
	sprayOrch *spray.Orchestrator
	parser    *detection.Parser

	telemetryPollInterval time.Duration
	telemetryMu           sync.Mutex
	lastTelemetrySent     map[int]time.Time

	mu       sync.Mutex
	sessions map[string]*session

	wg sync.WaitGroup
}

// Deps bundles the Channel's collaborators. The Mission Uploader is not
// listed: the Orchestrator owns it and drives uploads as part of
// start_mission.
type Deps struct {
	Registry *registry.Registry
	Router   *command.Router
	Missions *orchestrator.Orchestrator
	Spray    *spray.Orchestrator
	Parser   *detection.Parser

	// TelemetryPollInterval throttles drone_telemetry_update fan-out per
	// vehicle (§6.4 telemetry_poll_interval). Zero uses the default.
	TelemetryPollInterval time.Duration
}

// New builds a Channel against its collaborators.
func New(d Deps) *Channel {
	interval := d.TelemetryPollInterval
	if interval == 0 {
		interval = defaultTelemetryPollInterval
	}
	return &Channel{
		reg:                   d.Registry,
		router:                d.Router,
		missions:              d.Missions,
		sprayOrch:             d.Spray,
		parser:                d.Parser,
		telemetryPollInterval: interval,
		lastTelemetrySent:     make(map[int]time.Time),
		sessions:              make(map[string]*session),
	}
}

// shouldSendTelemetry reports whether enough time has elapsed since the
// last drone_telemetry_update broadcast for vehicleID, and records now as
// the new high-water mark when it returns true.
func (c *Channel) shouldSendTelemetry(vehicleID int, now time.Time) bool {
	c.telemetryMu.Lock()
	defer c.telemetryMu.Unlock()
	if last, ok := c.lastTelemetrySent[vehicleID]; ok && now.Sub(last) < c.telemetryPollInterval {
		return false
	}
	c.lastTelemetrySent[vehicleID] = now
	return true
}

// Serve accepts operator connections on listener until ctx is cancelled,
// and fans out registry/mission/spray events to every connected client. It
// returns once every accepted connection has drained (graceful shutdown).
func (c *Channel) Serve(ctx context.Context, listener net.Listener) error {
	go c.pumpEvents(ctx)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				c.wg.Wait()
				return nil
			default:
				return err
			}
		}
		c.wg.Add(1)
		go c.handleConn(ctx, conn)
	}
}

// pumpEvents subscribes to the Registry, Orchestrator, and Spray
// Orchestrator event streams and turns each into outbound broadcasts and,
// for status-text messages, Status-String Parser events (§2 flow C1 → C2
// → C3, C9, C7, C8).
func (c *Channel) pumpEvents(ctx context.Context) {
	vehicleEvents, cancelV := c.reg.Subscribe()
	defer cancelV()
	missionProgress, cancelM := c.missions.Subscribe()
	defer cancelM()
	sprayEvents, cancelS := c.sprayOrch.Subscribe()
	defer cancelS()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-vehicleEvents:
			if !ok {
				return
			}
			c.handleVehicleEvent(e)
		case p, ok := <-missionProgress:
			if !ok {
				return
			}
			c.handleMissionProgress(p)
		case e, ok := <-sprayEvents:
			if !ok {
				return
			}
			c.handleSprayEvent(e)
		}
	}
}

func (c *Channel) handleVehicleEvent(e registry.VehicleEvent) {
	switch e.Kind {
	case link.EventConnected:
		metrics.SetVehicleConnected(e.VehicleID, true)
		c.broadcast(OutDroneConnected, map[string]any{"vehicle_id": e.VehicleID})
	case link.EventDisconnected:
		metrics.SetVehicleConnected(e.VehicleID, false)
		c.broadcast(OutDroneDisconnected, map[string]any{"vehicle_id": e.VehicleID})
	case link.EventMessage:
		if e.Message == nil {
			return
		}
		if c.shouldSendTelemetry(e.VehicleID, time.Now()) {
			if snap, err := c.reg.Snapshot(e.VehicleID); err == nil {
				c.broadcast(OutDroneTelemetryUpdate, map[string]any{"vehicle_id": e.VehicleID, "snapshot": snap})
			}
		}
		if e.Message.Kind == link.KindStatusText {
			c.handleStatusText(e.VehicleID, e.Message)
		}
	}
}

// handleStatusText scans one status-text message for a tagged payload
// record (§4.3) and broadcasts the resulting typed event. Unknown tags
// produce no additional event — the plain status text is already part of
// the Snapshot's ring, delivered via drone_telemetry_update.
func (c *Channel) handleStatusText(vehicleID int, msg *link.Message) {
	ev, ok := c.parser.Parse(vehicleID, msg.StatusText.Text, msg.ReceivedAt)
	if !ok {
		return
	}
	metrics.RecordDetection(string(ev.Kind))
	switch ev.Kind {
	case detection.EventDetection:
		c.broadcast(OutCropDetection, ev.Detection)
	case detection.EventSummary:
		c.broadcast(OutDetectionStats, ev.Summary)
	case detection.EventImage:
		c.broadcast(OutImageCaptured, ev.Image)
	case detection.EventPiStats:
		c.broadcast(OutPiStats, ev.PiStats)
	}
}

func (c *Channel) handleMissionProgress(p orchestrator.Progress) {
	metrics.RecordMissionState(string(p.State))
	event := OutMissionStatus
	switch p.State {
	case orchestrator.StateRunning:
		if p.ProgressPercent == 0 {
			event = OutMissionStarted
		}
	case orchestrator.StateStopped:
		event = OutMissionStopped
	}
	c.broadcast(event, p)
}

func (c *Channel) handleSprayEvent(e spray.Event) {
	metrics.RecordSprayEvent(string(e.Kind))
	metrics.SetTankLevel(e.VehicleID, e.Tank.Current)
	c.broadcast(string(e.Kind), e)
}

func (c *Channel) broadcast(eventName string, data any) {
	frame, err := encodeOutbound(eventName, data)
	if err != nil {
		logger.Warn("operator: failed to encode outbound event", logger.Err(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		s.enqueue(frame)
	}
}

func (c *Channel) handleConn(ctx context.Context, conn net.Conn) {
	defer c.wg.Done()
	defer conn.Close()

	sess := newSession(uuid.NewString(), conn)

	c.mu.Lock()
	c.sessions[sess.id] = sess
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.sessions, sess.id)
		c.mu.Unlock()
	}()

	logger.Info("operator: client connected", logger.SessionID(sess.id), logger.ClientIP(conn.RemoteAddr().String()))

	c.backfill(sess)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		sess.conn.Close()
	}()

	go c.writeLoop(connCtx, sess)
	c.readLoop(connCtx, sess)
}

// backfill immediately sends the current drone list and per-vehicle status
// on client connect (§4.9 backfill).
func (c *Channel) backfill(sess *session) {
	list := c.reg.List()
	frame, err := encodeOutbound(OutDronesStatus, list)
	if err != nil {
		return
	}
	sess.enqueue(frame)
}

func (c *Channel) writeLoop(ctx context.Context, sess *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sess.out:
			if !ok {
				return
			}
			if err := writeFrame(sess.conn, frame); err != nil {
				logger.Debug("operator: write failed, closing session", logger.SessionID(sess.id), logger.Err(err))
				sess.conn.Close()
				return
			}
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, sess *session) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("operator: recovered panic in connection handler",
				logger.SessionID(sess.id), slog.Any("recover", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := readFrame(sess.conn)
		if err != nil {
			logger.Debug("operator: read failed, closing session", logger.SessionID(sess.id), logger.Err(err))
			return
		}
		if frame == nil {
			continue
		}

		var in Inbound
		if err := json.Unmarshal(frame, &in); err != nil {
			logger.Debug("operator: malformed inbound frame", logger.SessionID(sess.id), logger.Err(err))
			continue
		}

		c.dispatch(ctx, sess, in)
	}
}
