//go:build portaudio

package listen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"vadseg/internal/config"
)

// MicAvailable reports whether this build can capture audio.
const MicAvailable = true

type micSource struct {
	name   string
	rate   int
	buf    []float32
	stream *portaudio.Stream
	logger logrus.FieldLogger
}

// OpenMic starts capturing from the configured input device.
func OpenMic(cfg *config.Config, logger logrus.FieldLogger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := selectDevice(cfg.Audio.DeviceName, cfg.Audio.DeviceIndex)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	rate := cfg.Audio.SampleRate
	buf := make([]float32, rate/100)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: len(buf),
	}, &buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return &micSource{name: dev.Name, rate: rate, buf: buf, stream: stream, logger: logger}, nil
}

func (m *micSource) Name() string    { return m.name }
func (m *micSource) SampleRate() int { return m.rate }

func (m *micSource) Read(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			m.logger.Warn("input overflow")
		} else {
			return nil, fmt.Errorf("stream read: %w", err)
		}
	}
	return append([]float32(nil), m.buf...), nil
}

func (m *micSource) Close() error {
	_ = m.stream.Stop()
	err := m.stream.Close()
	portaudio.Terminate()
	return err
}

// InputDevices lists capture devices by name.
func InputDevices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var names []string
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

func selectDevice(preferred string, index int) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if index >= 0 && index < len(devs) && devs[index].MaxInputChannels > 0 {
		return devs[index], nil
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}
