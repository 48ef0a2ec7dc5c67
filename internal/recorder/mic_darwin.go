//go:build darwin

package recorder

import "github.com/gordonklaus/portaudio"

// DefaultInputName returns the PortAudio name of the host's default input device.
func DefaultInputName() string {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		return ""
	}
	return dev.Name
}
