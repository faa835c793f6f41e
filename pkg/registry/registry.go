// Package registry implements the Vehicle Registry (C4): it owns the set
// of per-vehicle Links and Telemetry Aggregators keyed by vehicle id,
// applies connect/disconnect/simulate/reconnect policy, and fans out the
// merged per-vehicle event stream to the rest of the broker (C3, C9, C7,
// C8).
//
// One mutex guards the id-to-vehicle map and critical sections stay short.
// Link Open and Close run outside it; List reads each Link's state and
// Aggregator snapshot, and wireEvents subscribes to the Link, while it is
// held.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/snapshot"
)

// ErrUnknownVehicle is returned by any operation addressing a vehicle id
// that has never been configured or connected.
type ErrUnknownVehicle struct {
	VehicleID int
}

func (e *ErrUnknownVehicle) Error() string {
	return fmt.Sprintf("registry: unknown vehicle %d", e.VehicleID)
}

// VehicleEvent is one Link event re-tagged with its origin vehicle id, the
// shape the rest of the broker (C3 detection parsing, C9 fan-out) consumes
// instead of reaching into individual Links.
type VehicleEvent struct {
	VehicleID int
	Kind      link.EventKind
	Message   *link.Message
	Err       error
}

// Summary is the per-vehicle status row returned by List (§4.4 list()).
type Summary struct {
	VehicleID int
	Connected bool
	Simulated bool
	Endpoint  string
	LastSeen  time.Time
}

// SyncResult is the per-vehicle outcome of a Sync pass (§4.4 sync()).
type SyncResult struct {
	VehicleID int
	Err       error
}

// vehicle is one registry entry: the owned Link, its Aggregator, and the
// configuration needed to (re)open it.
type vehicle struct {
	id       int
	endpoint string
	baud     int

	link       *link.Link
	aggregator *snapshot.Aggregator

	subCancel func()
}

// Registry owns every configured Vehicle's Link and Aggregator.
type Registry struct {
	mu       sync.Mutex
	vehicles map[int]*vehicle

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	ringSize          int

	subMu     sync.Mutex
	subs      map[int]chan VehicleEvent
	nextSubID int
}

// Config controls defaults applied to every Link the Registry opens.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	StatusRingSize    int
}

// New builds an empty Registry.
func New(cfg Config) *Registry {
	return &Registry{
		vehicles:          make(map[int]*vehicle),
		heartbeatInterval: cfg.HeartbeatInterval,
		heartbeatTimeout:  cfg.HeartbeatTimeout,
		ringSize:          cfg.StatusRingSize,
		subs:              make(map[int]chan VehicleEvent),
	}
}

// Subscribe returns a channel of every VehicleEvent emitted by any
// currently and subsequently connected vehicle, and a cancel function.
func (r *Registry) Subscribe() (<-chan VehicleEvent, func()) {
	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	ch := make(chan VehicleEvent, 256)
	r.subs[id] = ch
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		if existing, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(existing)
		}
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Registry) broadcast(e VehicleEvent) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
			logger.Debug("registry: dropping event, subscriber backlogged",
				logger.VehicleID(e.VehicleID))
		}
	}
}

// Connect creates (or refreshes) the Link for vehicleID and opens it
// (§4.4 connect()).
func (r *Registry) Connect(ctx context.Context, vehicleID int, endpoint string, baud int) error {
	r.mu.Lock()
	v, ok := r.vehicles[vehicleID]
	if !ok {
		v = &vehicle{id: vehicleID}
		r.vehicles[vehicleID] = v
	}
	v.endpoint = endpoint
	v.baud = baud
	if v.link == nil {
		v.link = link.New(link.Config{
			VehicleID:         vehicleID,
			Endpoint:          endpoint,
			Baud:              baud,
			HeartbeatInterval: r.heartbeatInterval,
			HeartbeatTimeout:  r.heartbeatTimeout,
		})
		v.aggregator = snapshot.New(r.ringSize)
	}
	l := v.link
	r.mu.Unlock()

	if err := l.Open(ctx); err != nil {
		return err
	}

	r.wireEvents(vehicleID, v)
	return nil
}

// wireEvents starts the goroutine that drains one vehicle's Link event
// stream into its Aggregator and re-broadcasts as VehicleEvent. Safe to
// call more than once per vehicle: a prior subscription is cancelled first.
func (r *Registry) wireEvents(vehicleID int, v *vehicle) {
	r.mu.Lock()
	if v.subCancel != nil {
		v.subCancel()
	}
	events, cancel := v.link.Subscribe()
	v.subCancel = cancel
	agg := v.aggregator
	r.mu.Unlock()

	go func() {
		for e := range events {
			if e.Kind == link.EventMessage && e.Message != nil {
				agg.Apply(e.Message)
			}
			r.broadcast(VehicleEvent{VehicleID: vehicleID, Kind: e.Kind, Message: e.Message, Err: e.Err})
		}
	}()
}

// Disconnect closes the Link but keeps the Vehicle entry (§4.4
// disconnect()).
func (r *Registry) Disconnect(vehicleID int) error {
	v, err := r.get(vehicleID)
	if err != nil {
		return err
	}
	return v.link.Close()
}

// Simulate enters simulated mode for vehicleID: no transport, synthesized
// telemetry at 1 Hz (§4.4 simulate()).
func (r *Registry) Simulate(ctx context.Context, vehicleID int) error {
	return r.Connect(ctx, vehicleID, link.SimulatedEndpoint, 0)
}

// Reconnect closes and reopens vehicleID's Link with its retained
// configuration (§4.4 reconnect()).
func (r *Registry) Reconnect(ctx context.Context, vehicleID int) error {
	v, err := r.get(vehicleID)
	if err != nil {
		return err
	}
	if err := v.link.Close(); err != nil {
		logger.Debug("registry: close before reconnect failed",
			logger.VehicleID(vehicleID), logger.Err(err))
	}
	return r.Connect(ctx, vehicleID, v.endpoint, v.baud)
}

// Sync ensures every vehicle the Registry knows about has an open Link,
// reporting a per-vehicle outcome (§4.4 sync()).
func (r *Registry) Sync(ctx context.Context) []SyncResult {
	r.mu.Lock()
	ids := make([]int, 0, len(r.vehicles))
	for id := range r.vehicles {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	results := make([]SyncResult, 0, len(ids))
	for _, id := range ids {
		v, err := r.get(id)
		if err != nil {
			results = append(results, SyncResult{VehicleID: id, Err: err})
			continue
		}
		if v.link.State() == link.StateConnected || v.link.State() == link.StateSimulated {
			results = append(results, SyncResult{VehicleID: id})
			continue
		}
		err = r.Connect(ctx, id, v.endpoint, v.baud)
		results = append(results, SyncResult{VehicleID: id, Err: err})
	}
	return results
}

// List summarizes every known vehicle (§4.4 list()).
func (r *Registry) List() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Summary, 0, len(r.vehicles))
	for id, v := range r.vehicles {
		state := v.link.State()
		out = append(out, Summary{
			VehicleID: id,
			Connected: state == link.StateConnected || state == link.StateSimulated,
			Simulated: state == link.StateSimulated,
			Endpoint:  v.endpoint,
			LastSeen:  v.aggregator.Read().LastUpdate,
		})
	}
	return out
}

// Snapshot returns the live Snapshot for vehicleID.
func (r *Registry) Snapshot(vehicleID int) (snapshot.Snapshot, error) {
	v, err := r.get(vehicleID)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return v.aggregator.Read(), nil
}

// Link returns the Link for vehicleID, used by the Command Router and
// Mission Uploader to transmit.
func (r *Registry) Link(vehicleID int) (*link.Link, error) {
	v, err := r.get(vehicleID)
	if err != nil {
		return nil, err
	}
	return v.link, nil
}

// Known reports whether vehicleID has ever been configured or connected.
func (r *Registry) Known(vehicleID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.vehicles[vehicleID]
	return ok
}

// Close closes every vehicle's Link, used at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	vs := make([]*vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		vs = append(vs, v)
	}
	r.mu.Unlock()

	for _, v := range vs {
		if err := v.link.Close(); err != nil {
			logger.Debug("registry: close on shutdown failed",
				logger.VehicleID(v.id), logger.Err(err))
		}
	}
}

func (r *Registry) get(vehicleID int) (*vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[vehicleID]
	if !ok {
		return nil, &ErrUnknownVehicle{VehicleID: vehicleID}
	}
	return v, nil
}
