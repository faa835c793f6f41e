// Package flightmode holds the fixed symbolic/numeric flight-mode table
// shared by the Telemetry Aggregator (decoding, for display) and the
// Command Router (encoding, for set_mode) (§4.5).
package flightmode

import "fmt"

var byNumber = map[uint32]string{
	0:  "STABILIZE",
	1:  "ACRO",
	2:  "ALT_HOLD",
	3:  "AUTO",
	4:  "GUIDED",
	5:  "LOITER",
	6:  "RTL",
	7:  "CIRCLE",
	9:  "LAND",
	16: "POSHOLD",
	17: "BRAKE",
}

var byName map[string]uint32

func init() {
	byName = make(map[string]uint32, len(byNumber))
	for n, name := range byNumber {
		byName[name] = n
	}
}

// Name decodes a custom_mode number to its symbolic name, or "MODE_<n>"
// when the number has no entry in the table.
func Name(customMode uint32) string {
	if name, ok := byNumber[customMode]; ok {
		return name
	}
	return fmt.Sprintf("MODE_%d", customMode)
}

// Number encodes a symbolic mode name (case-sensitive, upper-case) to its
// numeric custom_mode value.
func Number(name string) (uint32, bool) {
	n, ok := byName[name]
	return n, ok
}
