package link

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// realTransport backs a Link with gomavlib/v3 over a serial port, grounded
// in the flightpath MAVLink client's node wiring.
type realTransport struct {
	cfg           Config
	node          *gomavlib.Node
	peerSystemID  uint32 // atomic, defaults to 1 until first heartbeat
}

func newRealTransport(cfg Config) *realTransport {
	t := &realTransport{cfg: cfg}
	atomic.StoreUint32(&t.peerSystemID, 1)
	return t
}

func (t *realTransport) open(ctx context.Context, onEvent func(Event)) error {
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointSerial{
				Device: t.cfg.Endpoint,
				Baud:   t.cfg.Baud,
			},
		},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: t.cfg.SourceSystemID,
	})
	if err != nil {
		return fmt.Errorf("open serial node: %w", err)
	}
	t.node = node

	go t.listen(ctx, onEvent)
	return nil
}

func (t *realTransport) listen(ctx context.Context, onEvent func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.node.Events():
			if !ok {
				return
			}
			frm, ok := evt.(*gomavlib.EventFrame)
			if !ok {
				continue
			}
			msg := decode(frm.Message(), frm.SystemID(), frm.ComponentID())
			if msg == nil {
				continue
			}
			if msg.Kind == KindHeartbeat {
				atomic.StoreUint32(&t.peerSystemID, uint32(frm.SystemID()))
			}
			onEvent(Event{Kind: EventMessage, Message: msg})
		}
	}
}

func decode(msg message.Message, sysID, compID uint8) *Message {
	now := time.Now()
	base := Message{SystemID: sysID, ComponentID: compID, ReceivedAt: now}

	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		base.Kind = KindHeartbeat
		base.Heartbeat = &Heartbeat{
			CustomMode: m.CustomMode,
			Armed:      (uint8(m.BaseMode) & uint8(common.MAV_MODE_FLAG_SAFETY_ARMED)) != 0,
		}
	case *common.MessageGlobalPositionInt:
		base.Kind = KindGlobalPosition
		base.GlobalPosition = &GlobalPosition{
			Lat:            float64(m.Lat) / 1e7,
			Lon:            float64(m.Lon) / 1e7,
			AltitudeAbs:    float64(m.Alt) / 1000.0,
			AltitudeRel:    float64(m.RelativeAlt) / 1000.0,
			VelocityNorth:  float64(m.Vx) / 100.0,
			VelocityEast:   float64(m.Vy) / 100.0,
			VelocityDown:   float64(m.Vz) / 100.0,
			HeadingDegrees: float64(m.Hdg) / 100.0,
		}
	case *common.MessageAttitude:
		base.Kind = KindAttitude
		base.Attitude = &Attitude{
			RollDeg:  radToDeg(float64(m.Roll)),
			PitchDeg: radToDeg(float64(m.Pitch)),
			YawDeg:   radToDeg(float64(m.Yaw)),
		}
	case *common.MessageVfrHud:
		base.Kind = KindVFRHUD
		base.VFRHUD = &VFRHUD{
			HeadingDegrees: float64(m.Heading),
			GroundSpeed:    float64(m.Groundspeed),
			VerticalSpeed:  float64(m.Climb),
		}
	case *common.MessageSysStatus:
		base.Kind = KindSysStatus
		base.SysStatus = &SysStatus{
			BatteryVoltage: float64(m.VoltageBattery) / 1000.0,
			BatteryCurrent: float64(m.CurrentBattery) / 100.0,
			BatteryPercent: m.BatteryRemaining,
			SensorsHealthy: (uint32(m.OnboardControlSensorsHealth) &
				uint32(m.OnboardControlSensorsEnabled)) == uint32(m.OnboardControlSensorsEnabled),
		}
	case *common.MessageGpsRawInt:
		base.Kind = KindGPSRaw
		base.GPSRaw = &GPSRaw{
			FixType:    uint8(m.FixType),
			Satellites: m.SatellitesVisible,
			HDOP:       float64(m.Eph) / 100.0,
		}
	case *common.MessageBatteryStatus:
		base.Kind = KindBatteryStatus
		base.BatteryStatus = &BatteryStatus{RemainingPercent: m.BatteryRemaining}
	case *common.MessageStatustext:
		base.Kind = KindStatusText
		base.StatusText = &StatusText{Severity: uint8(m.Severity), Text: m.Text}
	case *common.MessageCommandAck:
		base.Kind = KindCommandAck
		base.CommandAck = &CommandAck{Command: uint16(m.Command), Result: uint8(m.Result)}
	case *common.MessageMissionRequest:
		base.Kind = KindMissionRequest
		base.MissionRequest = &MissionRequest{Seq: m.Seq}
	case *common.MessageMissionRequestInt:
		base.Kind = KindMissionRequest
		base.MissionRequest = &MissionRequest{Seq: m.Seq}
	case *common.MessageMissionAck:
		base.Kind = KindMissionAck
		base.MissionAck = &MissionAck{Result: uint8(m.Type)}
	case *common.MessageMissionCurrent:
		base.Kind = KindMissionCurrent
		base.MissionCurrent = &MissionCurrent{Seq: m.Seq}
	default:
		return nil
	}
	return &base
}

func radToDeg(r float64) float64 {
	return r * 180.0 / 3.14159265358979323846
}

func (t *realTransport) writeHeartbeat() error {
	return t.node.WriteMessageAll(&common.MessageHeartbeat{
		Type:           common.MAV_TYPE_GCS,
		Autopilot:      common.MAV_AUTOPILOT_INVALID,
		SystemStatus:   common.MAV_STATE_ACTIVE,
		MavlinkVersion: 3,
	})
}

func (t *realTransport) writeCommandLong(cmd uint16, p1, p2, p3, p4, p5, p6, p7 float32) error {
	return t.node.WriteMessageAll(&common.MessageCommandLong{
		TargetSystem:    t.targetSystem(),
		TargetComponent: 1,
		Command:         common.MAV_CMD(cmd),
		Param1:          p1,
		Param2:          p2,
		Param3:          p3,
		Param4:          p4,
		Param5:          p5,
		Param6:          p6,
		Param7:          p7,
	})
}

func (t *realTransport) writeMissionCount(count uint16) error {
	return t.node.WriteMessageAll(&common.MessageMissionCount{
		TargetSystem:    t.targetSystem(),
		TargetComponent: 1,
		Count:           count,
	})
}

func (t *realTransport) writeMissionItem(item MissionItem) error {
	return t.node.WriteMessageAll(&common.MessageMissionItemInt{
		TargetSystem:    t.targetSystem(),
		TargetComponent: 1,
		Seq:             item.Seq,
		Frame:           common.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		Command:         common.MAV_CMD(item.Command),
		Current:         item.Current,
		Autocontinue:    item.Autocontinue,
		Param1:          item.Param1,
		Param2:          item.Param2,
		Param3:          item.Param3,
		Param4:          item.Param4,
		X:               int32(item.Lat * 1e7),
		Y:               int32(item.Lon * 1e7),
		Z:               item.Alt,
	})
}

func (t *realTransport) targetSystem() uint8 {
	return uint8(atomic.LoadUint32(&t.peerSystemID))
}

func (t *realTransport) close() error {
	if t.node == nil {
		return nil
	}
	t.node.Close()
	return nil
}
