// Package mission implements the Mission Uploader (C6): it packs an
// operator waypoint list into the protocol's mission sequence and performs
// the mission-count / mission-request / mission-item-int / mission-ack
// handshake, reporting progress as it goes.
package mission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/registry"
)

// mavMissionAccepted is MAV_MISSION_ACCEPTED.
const mavMissionAccepted uint8 = 0

// EmptyMissionError is returned when Upload is called with zero waypoints.
type EmptyMissionError struct{}

func (e *EmptyMissionError) Error() string { return "mission: empty mission" }

// UploadInProgressError is returned when a second upload is attempted for a
// vehicle that already has one in flight (§4.6 idempotence).
type UploadInProgressError struct {
	VehicleID int
}

func (e *UploadInProgressError) Error() string {
	return fmt.Sprintf("mission: upload already in progress for vehicle %d", e.VehicleID)
}

// UploadRejectedError is returned when the final mission-ack carries a
// non-accepted result code.
type UploadRejectedError struct {
	Code uint8
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("mission: upload rejected by vehicle (code %d)", e.Code)
}

// UploadTimeoutError is returned when a mission-request is not received
// within the per-item timeout after the configured number of retransmits.
type UploadTimeoutError struct {
	Seq uint16
}

func (e *UploadTimeoutError) Error() string {
	return fmt.Sprintf("mission: timed out awaiting mission-request for item %d", e.Seq)
}

// Progress is one update emitted during Upload (§4.6 "reports progress").
type Progress struct {
	Phase    string // "uploading" | "uploaded"
	Uploaded int
	Total    int
}

// Uploader performs the mission upload handshake for one or more vehicles,
// enforcing at most one in-flight upload per vehicle.
type Uploader struct {
	reg *registry.Registry

	itemTimeout time.Duration
	itemRetries int

	mu         sync.Mutex
	inProgress map[int]bool
}

// New builds an Uploader against reg with the configured per-item timeout
// and retry count (§6.4 mission_item_timeout, default 3s/3 retries).
func New(reg *registry.Registry, itemTimeout time.Duration, itemRetries int) *Uploader {
	if itemTimeout <= 0 {
		itemTimeout = 3 * time.Second
	}
	if itemRetries <= 0 {
		itemRetries = 3
	}
	return &Uploader{
		reg:         reg,
		itemTimeout: itemTimeout,
		itemRetries: itemRetries,
		inProgress:  make(map[int]bool),
	}
}

// Upload expands waypoints into the N+3 mission sequence and drives the
// upload handshake against vehicleID, invoking onProgress as items are
// acknowledged (§4.6).
func (u *Uploader) Upload(ctx context.Context, vehicleID int, waypoints []Waypoint, surveyAltitude float64, onProgress func(Progress)) error {
	if len(waypoints) == 0 {
		return &EmptyMissionError{}
	}

	if !u.begin(vehicleID) {
		return &UploadInProgressError{VehicleID: vehicleID}
	}
	defer u.end(vehicleID)

	l, err := u.reg.Link(vehicleID)
	if err != nil {
		return err
	}

	items := expand(waypoints, surveyAltitude)
	total := len(items)

	if onProgress != nil {
		onProgress(Progress{Phase: "uploading", Total: total})
	}

	events, cancel := l.Subscribe()
	defer cancel()

	if err := l.SendMissionCount(uint16(total)); err != nil {
		return err
	}

	uploaded := 0
	lastSentSeq := uint16(0)
	lastSentWasSent := false

	// handleEvent advances the handshake on one inbound link.Event: it sends
	// the next requested item, or reports the final ack. advanced is true
	// when the event moved the handshake forward (a fresh mission-request or
	// the terminal ack), so the caller can tell progress from a stale/
	// unrelated event.
	handleEvent := func(e link.Event) (advanced bool, done bool, err error) {
		if e.Kind != link.EventMessage || e.Message == nil {
			return false, false, nil
		}
		switch e.Message.Kind {
		case link.KindMissionRequest:
			seq := e.Message.MissionRequest.Seq
			if int(seq) >= total {
				return false, false, nil
			}
			if err := l.SendMissionItem(toWire(items[seq])); err != nil {
				return false, false, err
			}
			lastSentSeq = seq
			lastSentWasSent = true
			uploaded = int(seq) + 1
			return true, false, nil
		case link.KindMissionAck:
			if e.Message.MissionAck.Result != mavMissionAccepted {
				return false, false, &UploadRejectedError{Code: e.Message.MissionAck.Result}
			}
			if onProgress != nil {
				onProgress(Progress{Phase: "uploaded", Uploaded: uploaded, Total: total})
			}
			return true, true, nil
		default:
			return false, false, nil
		}
	}

	for {
		timeoutAt := time.NewTimer(u.itemTimeout)
		select {
		case <-ctx.Done():
			timeoutAt.Stop()
			return ctx.Err()
		case <-timeoutAt.C:
			if !lastSentWasSent {
				return &UploadTimeoutError{Seq: 0}
			}
			ok := false
			for attempt := 1; attempt <= u.itemRetries && !ok; attempt++ {
				logger.Warn("mission: retransmitting item",
					slog.Int("waypoint_seq", int(lastSentSeq)), slog.Int("attempt", attempt))
				if err := l.SendMissionItem(toWire(items[lastSentSeq])); err != nil {
					return err
				}
				select {
				case e, chOk := <-events:
					if !chOk {
						continue
					}
					advanced, done, err := handleEvent(e)
					if err != nil {
						return err
					}
					if done {
						return nil
					}
					ok = advanced
				case <-time.After(u.itemTimeout):
				}
			}
			if !ok {
				return &UploadTimeoutError{Seq: lastSentSeq}
			}
		case e, ok := <-events:
			timeoutAt.Stop()
			if !ok {
				return &UploadTimeoutError{Seq: lastSentSeq}
			}
			_, done, err := handleEvent(e)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func toWire(it Item) link.MissionItem {
	return link.MissionItem{
		Seq:          it.Seq,
		Command:      it.Command,
		Current:      it.Current,
		Autocontinue: it.Autocontinue,
		Lat:          it.Lat,
		Lon:          it.Lon,
		Alt:          float32(it.Alt),
	}
}

func (u *Uploader) begin(vehicleID int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inProgress[vehicleID] {
		return false
	}
	u.inProgress[vehicleID] = true
	return true
}

func (u *Uploader) end(vehicleID int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.inProgress, vehicleID)
}
