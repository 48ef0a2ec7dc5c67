// Package device describes audio input devices and selects the subset
// eligible for switching.
package device

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNoDevicesFound is returned when the host reports no input devices.
	ErrNoDevicesFound = errors.New("no audio input devices found")
	// ErrNoMatchingDevices is returned when a filter selects nothing.
	ErrNoMatchingDevices = errors.New("no microphones match the filter")
)

// Device is an audio input device as enumerated at startup.
type Device struct {
	Index             int // position in the enumerated input list
	HostIndex         int // index in the host audio API's full device list
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

func (d Device) String() string {
	return d.Name
}

// ParseIndices reports whether filter consists entirely of comma-separated
// integers and, if so, returns them in order.
func ParseIndices(filter string) ([]int, bool) {
	if strings.TrimSpace(filter) == "" {
		return nil, false
	}
	parts := strings.Split(filter, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// Filter selects the devices named by filter. A filter made entirely of
// comma-separated integers selects those positions (out-of-range and repeated
// indices are dropped, the given order is kept). Any other filter selects
// devices whose name contains it, case-insensitively. An empty filter selects
// every device.
func Filter(devices []Device, filter string) ([]Device, error) {
	var selected []Device

	switch indices, ok := ParseIndices(filter); {
	case strings.TrimSpace(filter) == "":
		selected = append(selected, devices...)
	case ok:
		seen := make(map[int]bool, len(indices))
		for _, i := range indices {
			if i < 0 || i >= len(devices) || seen[i] {
				continue
			}
			seen[i] = true
			selected = append(selected, devices[i])
		}
	default:
		needle := strings.ToLower(filter)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				selected = append(selected, d)
			}
		}
	}

	if len(selected) == 0 {
		return nil, ErrNoMatchingDevices
	}
	return selected, nil
}
