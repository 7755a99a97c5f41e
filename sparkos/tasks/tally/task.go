package tally

import (
	"strings"

	"celltally/hal"
	logclient "celltally/sparkos/client/logger"
	"celltally/sparkos/kernel"
	"celltally/sparkos/proto"
	"celltally/sparkos/tally"
)

// Caps are the peers the task talks to. A zero Capability disables that peer.
type Caps struct {
	Log   kernel.Capability
	Click kernel.Capability

	// Serial is the serial service endpoint. Self is a send-only capability to
	// the task's own endpoint, handed to the serial service as the subscriber.
	Serial kernel.Capability
	Self   kernel.Capability
}

// Task is the counter device: it owns the panel and is its only writer.
type Task struct {
	disp hal.Display
	ep   kernel.Capability
	caps Caps

	panel *tally.Panel

	fb     hal.Framebuffer
	layout layout

	sel        int
	flash      int
	flashUntil uint64

	inbuf []byte

	line         []byte
	lineOverflow bool

	presentFailed bool
}

const (
	clickFreqHz = 1800
	clickMs     = 18
	resetFreqHz = 600
	resetMs     = 60

	flashTicks = 120

	maxLineBytes = 64
)

func New(disp hal.Display, roster *tally.Roster, ep kernel.Capability, caps Caps) *Task {
	if roster == nil {
		roster = tally.DefaultRoster()
	}
	return &Task{
		disp:  disp,
		ep:    ep,
		caps:  caps,
		panel: tally.NewPanel(roster),
		flash: -1,
	}
}

// Panel exposes the counts for inspection. Writers go through the task endpoint.
func (t *Task) Panel() *tally.Panel { return t.panel }

func (t *Task) Run(ctx *kernel.Context) {
	ch, ok := ctx.RecvChan(t.ep)
	if !ok {
		return
	}

	if t.disp != nil {
		t.attach(t.disp.Framebuffer())
	}

	if t.caps.Serial.Valid() && t.caps.Self.Valid() {
		res := ctx.SendToCapRetry(t.caps.Serial, uint16(proto.MsgSerialSubscribe), nil, t.caps.Self, 100)
		if res != kernel.SendOK {
			logclient.Logf(ctx, t.caps.Log, "tally: serial subscribe: %s", res)
		}
	}

	mode := "display"
	if t.fb == nil {
		mode = "headless"
	}
	logclient.Logf(ctx, t.caps.Log, "tally: ready, %d cells, %s", t.panel.Snapshot().Len(), mode)
	t.show(ctx)

	done := make(chan struct{})
	defer close(done)

	tickCh := make(chan uint64, 16)
	if t.fb != nil {
		go func() {
			last := ctx.NowTick()
			for {
				select {
				case <-done:
					return
				default:
				}
				last = ctx.WaitTick(last)
				select {
				case tickCh <- last:
				default:
				}
			}
		}()
	}

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleMessage(ctx, msg)
		case now := <-tickCh:
			if t.flash >= 0 && now >= t.flashUntil {
				t.flash = -1
				t.draw(ctx)
			}
		}
	}
}

// attach binds a framebuffer; a nil or non-RGB565 one leaves the task headless.
func (t *Task) attach(fb hal.Framebuffer) {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	l, ok := newLayout(fb.Width(), fb.Height(), t.panel.Snapshot().Len()+1)
	if !ok {
		return
	}
	t.fb = fb
	t.layout = l
}

func (t *Task) handleMessage(ctx *kernel.Context, msg kernel.Message) {
	switch proto.Kind(msg.Kind) {
	case proto.MsgTermInput:
		t.handleInput(ctx, msg.Payload())

	case proto.MsgSerialData:
		t.handleSerial(ctx, msg.Payload())

	case proto.MsgTallyIncrement:
		id, ok := proto.DecodeTallyIncrementPayload(msg.Payload())
		if !ok {
			logclient.Log(ctx, t.caps.Log, "tally: bad increment payload")
			return
		}
		t.increment(ctx, id)

	case proto.MsgTallyReset:
		t.reset(ctx)
	}
}

func (t *Task) handleInput(ctx *kernel.Context, b []byte) {
	t.inbuf = append(t.inbuf, b...)
	buf := t.inbuf

	for len(buf) > 0 {
		n, k, ok := nextKey(buf)
		if !ok {
			break
		}
		buf = buf[n:]
		t.handleKey(ctx, k)
	}
	t.inbuf = append(t.inbuf[:0], buf...)
}

func (t *Task) handleKey(ctx *kernel.Context, k key) {
	switch k.kind {
	case keyLeft:
		t.moveSelection(ctx, -1)
	case keyRight:
		t.moveSelection(ctx, 1)
	case keyUp:
		t.moveSelection(ctx, -layoutCols)
	case keyDown:
		t.moveSelection(ctx, layoutCols)
	case keyEnter:
		t.press(ctx, t.sel)
	case keyDelete:
		t.press(ctx, t.resetButton())
	case keyRune:
		switch r := k.r; {
		case r >= '1' && r <= '9':
			i := int(r - '1')
			if i < t.resetButton() {
				t.sel = i
				t.press(ctx, i)
			}
		case r == '0' || r == 'r' || r == 'R':
			t.sel = t.resetButton()
			t.press(ctx, t.sel)
		case r == ' ':
			t.press(ctx, t.sel)
		}
	}
}

// resetButton is the index of the reset button, after the cell buttons.
func (t *Task) resetButton() int { return t.panel.Snapshot().Len() }

func (t *Task) moveSelection(ctx *kernel.Context, delta int) {
	next := t.sel + delta
	if next < 0 || next > t.resetButton() {
		return
	}
	t.sel = next
	t.draw(ctx)
}

// press activates button i: a cell button increments, the last one resets.
func (t *Task) press(ctx *kernel.Context, i int) {
	if i < 0 || i > t.resetButton() {
		return
	}
	t.flash = i
	t.flashUntil = nowTick(ctx) + flashTicks

	if i == t.resetButton() {
		t.reset(ctx)
		return
	}
	cell, _ := t.panel.Snapshot().Roster().Cell(i)
	t.increment(ctx, cell.ID)
}

func (t *Task) increment(ctx *kernel.Context, id string) {
	cell, ok := t.panel.Snapshot().Roster().Lookup(id)
	if !ok || !t.panel.Increment(cell.ID) {
		logclient.Logf(ctx, t.caps.Log, "tally: unknown cell %q", id)
		return
	}
	t.click(ctx, clickFreqHz, clickMs)

	s := t.panel.Snapshot()
	logclient.Logf(ctx, t.caps.Log, "tally: %s +1 total=%s", cell.ID, tally.FormatCount(s.Total()))
	t.show(ctx)
}

func (t *Task) reset(ctx *kernel.Context) {
	t.panel.Reset()
	t.click(ctx, resetFreqHz, resetMs)
	logclient.Logf(ctx, t.caps.Log, "tally: reset")
	t.show(ctx)
}

func (t *Task) click(ctx *kernel.Context, freqHz, durationMs uint16) {
	if ctx == nil || !t.caps.Click.Valid() {
		return
	}
	// Best-effort.
	_ = ctx.SendToCapResult(t.caps.Click, uint16(proto.MsgClick), proto.ClickPayload(freqHz, durationMs), kernel.Capability{})
}

// show presents the current counts: drawn on the display, or logged when headless.
func (t *Task) show(ctx *kernel.Context) {
	if t.fb != nil {
		t.draw(ctx)
		return
	}
	for _, row := range lcdRows(t.panel.Snapshot()) {
		logclient.Logf(ctx, t.caps.Log, "LCD %s", row)
	}
}

// draw renders a frame. Only the first present failure is logged; the next
// frame retries.
func (t *Task) draw(ctx *kernel.Context) {
	err := t.render()
	if err == nil || t.presentFailed {
		return
	}
	t.presentFailed = true
	logclient.Logf(ctx, t.caps.Log, "tally: present: %v", err)
}

func (t *Task) handleSerial(ctx *kernel.Context, b []byte) {
	for _, c := range b {
		if c == '\n' || c == '\r' {
			if !t.lineOverflow {
				t.runCommand(ctx, string(t.line))
			}
			t.line = t.line[:0]
			t.lineOverflow = false
			continue
		}
		if len(t.line) >= maxLineBytes {
			t.lineOverflow = true
			continue
		}
		t.line = append(t.line, c)
	}
}

func (t *Task) runCommand(ctx *kernel.Context, line string) {
	cmd := parseCommand(line)
	switch cmd.kind {
	case cmdNone:
	case cmdIncrement:
		t.increment(ctx, cmd.id)
	case cmdReset:
		t.reset(ctx)
	case cmdShow:
		t.reply(ctx, strings.Join(lcdRows(t.panel.Snapshot()), "\n"))
	case cmdHelp:
		var ids []string
		for _, c := range t.panel.Snapshot().Roster().Cells() {
			ids = append(ids, c.ID)
		}
		t.reply(ctx, "cells: "+strings.Join(ids, " ")+"; commands: <id> inc reset show")
	default:
		logclient.Logf(ctx, t.caps.Log, "tally: unknown command %q", strings.TrimSpace(line))
	}
}

// reply answers a serial command on the serial line, or in the log when there is none.
func (t *Task) reply(ctx *kernel.Context, s string) {
	if ctx == nil {
		return
	}
	if !t.caps.Serial.Valid() {
		for _, line := range strings.Split(s, "\n") {
			logclient.Log(ctx, t.caps.Log, line)
		}
		return
	}
	b := []byte(s + "\n")
	for len(b) > 0 {
		chunk := b
		if len(chunk) > kernel.MaxMessageBytes {
			chunk = chunk[:kernel.MaxMessageBytes]
		}
		res := ctx.SendToCapRetry(t.caps.Serial, uint16(proto.MsgSerialWrite), chunk, kernel.Capability{}, 20)
		if res != kernel.SendOK {
			return
		}
		b = b[len(chunk):]
	}
}

func nowTick(ctx *kernel.Context) uint64 {
	if ctx == nil {
		return 0
	}
	return ctx.NowTick()
}
