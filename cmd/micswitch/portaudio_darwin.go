//go:build darwin

package main

import "github.com/gordonklaus/portaudio"

// initPortAudio initializes PortAudio. CoreAudio does not print the ALSA/JACK
// probe noise seen on Linux.
func initPortAudio() error {
	return portaudio.Initialize()
}
