package click

import (
	"celltally/hal"
	"celltally/sparkos/kernel"
	"celltally/sparkos/proto"
)

const (
	sampleRate = 22050
	amplitude  = 6000
	// Tone bursts longer than this are clipped.
	maxDurationMs = 100
)

// Service plays short square-wave bursts, the mechanical click of a tally counter.
type Service struct {
	audio hal.Audio
	ep    kernel.Capability

	pwm     hal.PWMAudio
	started bool
	failed  bool
}

func New(audio hal.Audio, ep kernel.Capability) *Service {
	return &Service{audio: audio, ep: ep}
}

func (s *Service) Run(ctx *kernel.Context) {
	ch, ok := ctx.RecvChan(s.ep)
	if !ok {
		return
	}
	if s.audio != nil {
		s.pwm = s.audio.PWM()
	}

	for msg := range ch {
		if proto.Kind(msg.Kind) != proto.MsgClick {
			continue
		}
		freq, dur, ok := proto.DecodeClickPayload(msg.Payload())
		if !ok {
			continue
		}
		s.play(freq, dur)
	}
}

func (s *Service) play(freqHz, durationMs uint16) {
	if s.pwm == nil || s.failed {
		return
	}
	if !s.started {
		if err := s.pwm.Start(sampleRate); err != nil {
			s.failed = true
			return
		}
		s.started = true
	}
	// Clicks do not queue up behind each other.
	if s.pwm.PendingSamples() > sampleRate/20 {
		return
	}
	for _, v := range squareBurst(freqHz, durationMs, sampleRate) {
		s.pwm.WriteSample(v)
	}
}

// squareBurst renders a square wave with a linear decay envelope.
func squareBurst(freqHz, durationMs uint16, rate int) []int16 {
	if freqHz == 0 || durationMs == 0 || rate <= 0 {
		return nil
	}
	if durationMs > maxDurationMs {
		durationMs = maxDurationMs
	}
	n := rate * int(durationMs) / 1000
	half := rate / (2 * int(freqHz))
	if half < 1 {
		half = 1
	}
	out := make([]int16, n)
	for i := range out {
		level := amplitude * (n - i) / n
		if (i/half)%2 == 1 {
			level = -level
		}
		out[i] = int16(level)
	}
	return out
}
