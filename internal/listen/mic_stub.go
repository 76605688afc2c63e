//go:build !portaudio

package listen

import (
	"errors"

	"github.com/sirupsen/logrus"

	"vadseg/internal/config"
)

// MicAvailable reports whether this build can capture audio.
const MicAvailable = false

var errNoMic = errors.New("microphone capture not built; rebuild with -tags portaudio")

// OpenMic is unavailable without the portaudio build tag.
func OpenMic(cfg *config.Config, logger logrus.FieldLogger) (Source, error) {
	return nil, errNoMic
}

// InputDevices is unavailable without the portaudio build tag.
func InputDevices() ([]string, error) {
	return nil, errNoMic
}
