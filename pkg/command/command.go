// Package command implements the Command Router (C5): it converts
// symbolic operator commands into protocol command-long packets and awaits
// acknowledgment, composing a diagnostic message when an arm request is
// rejected.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/flightmode"
	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/registry"
)

// Protocol command codes (§4.5 table).
const (
	cmdComponentArmDisarm uint16 = 400
	cmdDoSetMode          uint16 = 176
	cmdNavTakeoff         uint16 = 22
	cmdNavLand            uint16 = 21
	cmdNavWaypoint        uint16 = 16
)

// mavResultAccepted is MAV_RESULT_ACCEPTED.
const mavResultAccepted uint8 = 0

// NotConnectedError is returned when the addressed vehicle's Link is not
// open.
type NotConnectedError struct {
	VehicleID int
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("command: vehicle %d is not connected", e.VehicleID)
}

// CommandRejectedError is returned when the vehicle's acknowledgment is not
// MAV_RESULT_ACCEPTED, or no acknowledgment arrives within the timeout.
// Diagnostic carries the human-readable root cause composed per §4.5 for
// arm rejections; it is empty for other commands.
type CommandRejectedError struct {
	Command    string
	Result     uint8
	TimedOut   bool
	Diagnostic string
}

func (e *CommandRejectedError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("command: %s timed out awaiting acknowledgment", e.Command)
	}
	if e.Diagnostic != "" {
		return e.Diagnostic
	}
	return fmt.Sprintf("command: %s rejected by vehicle (result %d)", e.Command, e.Result)
}

// UnsupportedCommandError is returned for a symbolic name outside §4.5's
// table.
type UnsupportedCommandError struct {
	Symbolic string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("command: unsupported command %q", e.Symbolic)
}

// Result is the successful outcome of Execute.
type Result struct {
	Command string
	Code    uint8
}

// Router converts symbolic operator commands into protocol packets and
// awaits acknowledgment (§4.5).
type Router struct {
	reg        *registry.Registry
	ackTimeout time.Duration
}

// New builds a Router against reg with the configured ack timeout (§6.4
// command_ack_timeout, default 3s).
func New(reg *registry.Registry, ackTimeout time.Duration) *Router {
	if ackTimeout <= 0 {
		ackTimeout = 3 * time.Second
	}
	return &Router{reg: reg, ackTimeout: ackTimeout}
}

// Execute converts symbolic/params into a protocol command and awaits
// acknowledgment (§4.5 execute()).
func (r *Router) Execute(ctx context.Context, vehicleID int, symbolic string, params map[string]float64) (Result, error) {
	l, err := r.reg.Link(vehicleID)
	if err != nil {
		return Result{}, err
	}
	if l.State() != link.StateConnected && l.State() != link.StateSimulated {
		return Result{}, &NotConnectedError{VehicleID: vehicleID}
	}

	cmd, p1, p2, p5, p6, p7, err := encode(symbolic, params)
	if err != nil {
		return Result{}, err
	}

	events, cancel := l.Subscribe()
	defer cancel()

	if err := l.SendCommandLong(cmd, p1, p2, 0, 0, p5, p6, p7); err != nil {
		return Result{}, err
	}

	ackCtx, stop := context.WithTimeout(ctx, r.ackTimeout)
	defer stop()

	for {
		select {
		case <-ackCtx.Done():
			logger.Warn("command: ack timeout", logger.Command(symbolic), logger.VehicleID(vehicleID))
			return Result{}, &CommandRejectedError{Command: symbolic, TimedOut: true}
		case e, ok := <-events:
			if !ok {
				return Result{}, &CommandRejectedError{Command: symbolic, TimedOut: true}
			}
			if e.Kind != link.EventMessage || e.Message == nil || e.Message.Kind != link.KindCommandAck {
				continue
			}
			ack := e.Message.CommandAck
			if ack.Command != cmd {
				continue
			}
			if ack.Result != mavResultAccepted {
				diag := ""
				if symbolic == "arm" {
					diag = r.armDiagnostic(vehicleID, ack.Result)
					logger.Warn("command: arm rejected", logger.VehicleID(vehicleID), logger.Err(fmt.Errorf("%s", diag)))
				}
				return Result{}, &CommandRejectedError{Command: symbolic, Result: ack.Result, Diagnostic: diag}
			}
			return Result{Command: symbolic, Code: ack.Result}, nil
		}
	}
}

// encode converts a symbolic command and its parameters to a command-long
// (command, p1, p2, p5, p6, p7) tuple per §4.5's table.
func encode(symbolic string, params map[string]float64) (cmd uint16, p1, p2, p5, p6, p7 float32, err error) {
	switch symbolic {
	case "arm":
		return cmdComponentArmDisarm, 1, 0, 0, 0, 0, nil
	case "disarm":
		return cmdComponentArmDisarm, 0, 0, 0, 0, 0, nil
	case "set_mode":
		return cmdDoSetMode, 1, float32(params["mode_number"]), 0, 0, 0, nil
	case "takeoff":
		return cmdNavTakeoff, 0, 0, 0, 0, float32(params["altitude"]), nil
	case "land":
		return cmdNavLand, 0, 0, 0, 0, 0, nil
	case "rtl":
		modeNum, _ := flightmode.Number("RTL")
		return cmdDoSetMode, 1, float32(modeNum), 0, 0, 0, nil
	case "goto":
		return cmdNavWaypoint, 0, 0, float32(params["lat"]), float32(params["lon"]), float32(params["alt"]), nil
	default:
		return 0, 0, 0, 0, 0, 0, &UnsupportedCommandError{Symbolic: symbolic}
	}
}

// SetModeByName is a convenience wrapper used by the orchestrators, which
// address modes symbolically rather than by number.
func (r *Router) SetModeByName(ctx context.Context, vehicleID int, modeName string) (Result, error) {
	modeNum, ok := flightmode.Number(strings.ToUpper(modeName))
	if !ok {
		return Result{}, fmt.Errorf("command: unknown flight mode %q", modeName)
	}
	return r.Execute(ctx, vehicleID, "set_mode", map[string]float64{"mode_number": float64(modeNum)})
}

// armDiagnostic composes the human-readable root cause for a rejected arm
// request from the live Snapshot (§4.5 arm pre-check and diagnostics).
func (r *Router) armDiagnostic(vehicleID int, result uint8) string {
	snap, err := r.reg.Snapshot(vehicleID)
	if err != nil {
		return fmt.Sprintf("ARM rejected by vehicle (result %d)", result)
	}

	var issues []string
	if snap.GPSFixType < 3 {
		issues = append(issues, "GPS fix quality low — need 3D fix")
	}
	if snap.Satellites < 8 {
		issues = append(issues, "Low satellite count — recommended 8+")
	}
	if snap.BatteryVoltage < 10.5 {
		issues = append(issues, "Low battery voltage (<10.5 V)")
	}
	if snap.FlightMode == "" || strings.HasPrefix(snap.FlightMode, "MODE_") {
		issues = append(issues, "Mode not armable")
	}

	base := fmt.Sprintf("ARM rejected by vehicle. GPS: %d fix, %d satellites; Battery: %.1fV; Mode: %s.",
		snap.GPSFixType, snap.Satellites, snap.BatteryVoltage, snap.FlightMode)
	if len(issues) == 0 {
		return base
	}
	return base + " Issues: " + strings.Join(issues, "; ")
}
