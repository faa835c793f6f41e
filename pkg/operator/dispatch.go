package operator

import (
	"context"
	"log/slog"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/metrics"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/spray"
)

// dispatch routes one decoded Inbound command to its collaborator and
// replies to the originating session with a command_result frame (§4.9
// closed inbound set, §6.3 envelope).
func (c *Channel) dispatch(ctx context.Context, sess *session, in Inbound) {
	var err error

	switch in.Event {
	case InArm:
		_, err = c.router.Execute(ctx, in.VehicleID, "arm", nil)
	case InDisarm:
		_, err = c.router.Execute(ctx, in.VehicleID, "disarm", nil)
	case InSetMode:
		_, err = c.router.SetModeByName(ctx, in.VehicleID, in.Mode)
	case InTakeoff:
		_, err = c.router.Execute(ctx, in.VehicleID, "takeoff", in.Params)
	case InLand:
		_, err = c.router.Execute(ctx, in.VehicleID, "land", nil)
	case InRTL:
		_, err = c.router.Execute(ctx, in.VehicleID, "rtl", nil)
	case InGoto:
		_, err = c.router.Execute(ctx, in.VehicleID, "goto", in.Params)

	case InReconnect:
		err = c.reg.Reconnect(ctx, in.VehicleID)
	case InSimulate:
		err = c.reg.Simulate(ctx, in.VehicleID)
	case InSync:
		for _, r := range c.reg.Sync(ctx) {
			if r.Err != nil {
				logger.Warn("operator: sync failed for vehicle", logger.VehicleID(r.VehicleID), logger.Err(r.Err))
			}
		}

	case InStartMission:
		waypoints := make([]mission.Waypoint, len(in.Waypoints))
		for i, wp := range in.Waypoints {
			waypoints[i] = mission.Waypoint{Lat: wp.Lat, Lon: wp.Lon, Alt: wp.Alt, Seq: i}
		}
		_, err = c.missions.Start(ctx, in.VehicleID, waypoints, in.Params["altitude"], in.Params["speed"], in.Params["area"])
	case InPauseMission:
		err = c.missions.Pause(ctx, in.VehicleID)
	case InStopMission:
		err = c.missions.Stop(ctx, in.VehicleID)

	case InSprayQueueTargets:
		detections := make([]spray.DetectionInput, len(in.Targets))
		for i, t := range in.Targets {
			detections[i] = spray.DetectionInput{DetectionID: t.DetectionID, Lat: t.Lat, Lon: t.Lon, Confidence: t.Confidence}
		}
		c.sprayOrch.QueueTargets(in.VehicleID, detections)
	case InSprayStart:
		err = c.sprayOrch.Start(in.VehicleID)
	case InSprayStop:
		c.sprayOrch.Stop(in.VehicleID)
	case InSprayTargetComplete:
		err = c.sprayOrch.TargetCompleted(in.VehicleID, in.TargetID, in.Success)
	case InSprayRefillComplete:
		err = c.sprayOrch.RefillComplete(in.VehicleID)
	case InSprayClearQueue:
		c.sprayOrch.ClearQueue(in.VehicleID)

	case InRequestDroneList:
		c.replyDroneList(sess)
		return

	default:
		logger.Debug("operator: unknown inbound event", slog.String("event", in.Event))
		return
	}

	c.reply(sess, in.Event, err)
}

func (c *Channel) reply(sess *session, event string, err error) {
	metrics.RecordCommand(event, err)
	result := CommandResult{Success: err == nil, Command: event}
	if err != nil {
		result.Error = err.Error()
	}
	frame, encErr := encodeOutbound(OutCommandResult, result)
	if encErr != nil {
		return
	}
	sess.enqueue(frame)
}

func (c *Channel) replyDroneList(sess *session) {
	frame, err := encodeOutbound(OutDronesStatus, c.reg.List())
	if err != nil {
		return
	}
	sess.enqueue(frame)
}
