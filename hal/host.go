//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// HostOptions selects which host peripherals are attached.
type HostOptions struct {
	// Serial attaches stdin/stdout as the serial line.
	Serial bool
	// Mute detaches the speaker.
	Mute bool
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	t      *hostTime
	serial Serial
	aud    Audio
}

func newHost(opts HostOptions) *hostHAL {
	h := &hostHAL{
		logger: &hostLogger{w: os.Stdout},
		fb:     newHostFramebuffer(320, 320),
		kbd:    newHostKeyboard(),
		t:      newHostTime(),
	}
	if opts.Serial {
		h.serial = &hostSerial{r: os.Stdin, w: os.Stdout}
	}
	if !opts.Mute {
		h.aud = newHostAudio()
	}
	return h
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Time() Time       { return h.t }

func (h *hostHAL) Serial() Serial {
	if h.serial == nil {
		return nil
	}
	return h.serial
}

func (h *hostHAL) Audio() Audio {
	if h.aud == nil {
		return nil
	}
	return h.aud
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
