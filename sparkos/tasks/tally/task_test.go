package tally

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"testing"
	"time"

	"celltally/hal"
	"celltally/sparkos/kernel"
	"celltally/sparkos/proto"
	"celltally/sparkos/tally"
)

type memFB struct {
	w, h     int
	buf      []byte
	presents int
	err      error
}

func newMemFB(w, h int) *memFB {
	return &memFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *memFB) Width() int              { return f.w }
func (f *memFB) Height() int             { return f.h }
func (f *memFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *memFB) StrideBytes() int        { return f.w * 2 }
func (f *memFB) Buffer() []byte          { return f.buf }
func (f *memFB) ClearRGB(r, g, b uint8)  {}

func (f *memFB) Present() error {
	f.presents++
	return f.err
}

func (f *memFB) pixel(x, y int) uint16 {
	o := y*f.w*2 + x*2
	return uint16(f.buf[o]) | uint16(f.buf[o+1])<<8
}

func (f *memFB) snapshot() []byte { return append([]byte(nil), f.buf...) }

func rgb(c color.RGBA) uint16 { return hal.RGB565(c.R, c.G, c.B) }

func newTestTask() *Task { return New(nil, nil, kernel.Capability{}, Caps{}) }

func count(tk *Task, id string) uint32 {
	c, _ := tk.Panel().Snapshot().Count(id)
	return c
}

func total(tk *Task) uint64 { return tk.Panel().Snapshot().Total() }

func TestDigitKeysCountAndResetKeysClear(t *testing.T) {
	tk := newTestTask()

	tk.handleInput(nil, []byte("666"))
	if c := count(tk, "seg"); c != 3 {
		t.Fatalf("seg = %d; want 3", c)
	}
	tk.handleInput(nil, []byte("18"))
	if count(tk, "baso") != 1 || count(tk, "mono") != 1 || total(tk) != 5 {
		t.Fatalf("after 1,8: baso=%d mono=%d total=%d", count(tk, "baso"), count(tk, "mono"), total(tk))
	}

	// 9 has no cell on an eight-cell roster; q and Esc do nothing on the device.
	tk.handleInput(nil, []byte("9q\x1b"))
	if total(tk) != 5 {
		t.Fatalf("total = %d after ignored keys; want 5", total(tk))
	}

	for _, reset := range []string{"0", "r", "\x1b[3~"} {
		tk.handleInput(nil, []byte("2"))
		tk.handleInput(nil, []byte(reset))
		if total(tk) != 0 {
			t.Fatalf("total = %d after %q; want 0", total(tk), reset)
		}
	}
}

func TestArrowsMoveSelectionAndEnterPresses(t *testing.T) {
	tk := newTestTask()

	tk.handleInput(nil, []byte("\x1b[C\x1b[C\n"))
	if tk.sel != 2 || count(tk, "myelo") != 1 {
		t.Fatalf("sel = %d myelo = %d; want 2, 1", tk.sel, count(tk, "myelo"))
	}

	tk.handleInput(nil, []byte("\x1b[B "))
	if tk.sel != 5 || count(tk, "seg") != 1 {
		t.Fatalf("sel = %d seg = %d; want 5, 1", tk.sel, count(tk, "seg"))
	}

	// Down from the middle row lands on the reset button.
	tk.handleInput(nil, []byte("\x1b[B"))
	if tk.sel != 8 {
		t.Fatalf("sel = %d; want reset button 8", tk.sel)
	}
	tk.handleInput(nil, []byte("\x1b[B\x1b[C"))
	if tk.sel != 8 {
		t.Fatalf("sel moved past the last button to %d", tk.sel)
	}
	tk.handleInput(nil, []byte("\n"))
	if total(tk) != 0 {
		t.Fatalf("total = %d after pressing reset; want 0", total(tk))
	}

	tk.handleInput(nil, []byte("\x1b[A\x1b[A\x1b[A\x1b[D"))
	if tk.sel != 1 {
		t.Fatalf("sel = %d; want 1", tk.sel)
	}
}

func TestEscapeSequenceSplitAcrossMessages(t *testing.T) {
	tk := newTestTask()
	tk.handleInput(nil, []byte("\x1b["))
	if tk.sel != 0 {
		t.Fatalf("sel = %d before the sequence completes", tk.sel)
	}
	tk.handleInput(nil, []byte("C"))
	if tk.sel != 1 {
		t.Fatalf("sel = %d; want 1", tk.sel)
	}
}

func TestSerialCommands(t *testing.T) {
	tk := newTestTask()

	tk.handleSerial(nil, []byte("seg\ninc lymph\r\n+ SEG\nneutro\nbogus cmd here\n"))
	if count(tk, "seg") != 2 || count(tk, "lymph") != 1 || total(tk) != 3 {
		t.Fatalf("seg=%d lymph=%d total=%d; want 2, 1, 3", count(tk, "seg"), count(tk, "lymph"), total(tk))
	}

	tk.handleSerial(nil, []byte("mo"))
	if count(tk, "mono") != 0 {
		t.Fatal("partial line should not run")
	}
	tk.handleSerial(nil, []byte("no\n"))
	if count(tk, "mono") != 1 {
		t.Fatalf("mono = %d; want 1", count(tk, "mono"))
	}

	long := strings.Repeat("x", maxLineBytes+10) + "seg\n"
	tk.handleSerial(nil, []byte(long))
	if count(tk, "seg") != 2 {
		t.Fatal("overlong line should be discarded")
	}

	tk.handleSerial(nil, []byte("reset\n"))
	if total(tk) != 0 {
		t.Fatalf("total = %d after reset; want 0", total(tk))
	}
}

func TestSerialCommandsMatchMixedCaseRoster(t *testing.T) {
	r, err := tally.NewRoster(tally.Cell{ID: "Neut", Label: "NEUT"}, tally.Cell{ID: "lymph", Label: "LYMPH"})
	if err != nil {
		t.Fatal(err)
	}
	tk := New(nil, r, kernel.Capability{}, Caps{})

	tk.handleSerial(nil, []byte("Neut\nneut\nINC NEUT\n+ Lymph\n"))
	if c := count(tk, "Neut"); c != 3 {
		t.Fatalf("Neut = %d; want 3", c)
	}
	if c := count(tk, "lymph"); c != 1 {
		t.Fatalf("lymph = %d; want 1", c)
	}
}

func TestLCDRows(t *testing.T) {
	s := tally.NewSet(tally.DefaultRoster())
	want := []string{
		"BASO 000 0.0% | EOSINO 000 0.0% | MYELO 000 0.0%",
		"JUVEN 000 0.0% | STAB 000 0.0% | SEG 000 0.0%",
		"LYMPH 000 0.0% | MONO 000 0.0% | TOTAL 000 0%",
	}
	if got := lcdRows(s); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("lcdRows(empty) = %q; want %q", got, want)
	}

	s = s.Increment("seg").Increment("seg").Increment("lymph")
	rows := lcdRows(s)
	if rows[1] != "JUVEN 000 0.0% | STAB 000 0.0% | SEG 002 66.7%" {
		t.Fatalf("row 1 = %q", rows[1])
	}
	if rows[2] != "LYMPH 001 33.3% | MONO 000 0.0% | TOTAL 003 100%" {
		t.Fatalf("row 2 = %q", rows[2])
	}
}

func TestRenderDrawsPanel(t *testing.T) {
	fb := newMemFB(320, 320)
	tk := newTestTask()
	tk.attach(fb)
	if tk.fb == nil {
		t.Fatal("attach rejected a 320x320 RGB565 framebuffer")
	}
	if len(tk.layout.tiles) != 9 || len(tk.layout.buttons) != 9 {
		t.Fatalf("layout has %d tiles, %d buttons; want 9, 9", len(tk.layout.tiles), len(tk.layout.buttons))
	}

	tk.render()
	if fb.presents != 1 {
		t.Fatalf("presents = %d; want 1", fb.presents)
	}
	if got := fb.pixel(1, 1); got != rgb(colCasing) {
		t.Fatalf("casing pixel = %#04x; want %#04x", got, rgb(colCasing))
	}
	if got := fb.pixel(6, 6); got != rgb(colBezel) {
		t.Fatalf("bezel pixel = %#04x; want %#04x", got, rgb(colBezel))
	}
	if got := fb.pixel(9, 9); got != rgb(colLCD) {
		t.Fatalf("lcd pixel = %#04x; want %#04x", got, rgb(colLCD))
	}

	cx, cy, radius, ok := buttonCircle(tk.layout.buttons[0])
	if !ok {
		t.Fatal("button 0 too small to draw")
	}
	if got := fb.pixel(cx-radius+2, cy); got != rgb(colKey) {
		t.Fatalf("idle key face = %#04x; want %#04x", got, rgb(colKey))
	}
	if got := fb.pixel(cx-radius-2, cy); got != rgb(colSelect) {
		t.Fatalf("selected ring = %#04x; want %#04x", got, rgb(colSelect))
	}
	cx1, cy1, radius1, _ := buttonCircle(tk.layout.buttons[1])
	if got := fb.pixel(cx1-radius1-2, cy1); got != rgb(colCasing) {
		t.Fatalf("unselected key has a ring: %#04x", got)
	}

	before := fb.snapshot()
	tk.press(nil, 0)
	if fb.presents != 2 {
		t.Fatalf("presents = %d after press; want 2", fb.presents)
	}
	if bytes.Equal(before, fb.buf) {
		t.Fatal("frame unchanged after increment")
	}
	if got := fb.pixel(cx-radius+2, cy); got != rgb(colKeyLit) {
		t.Fatalf("pressed key face = %#04x; want %#04x", got, rgb(colKeyLit))
	}

	rx, ry, rr, _ := buttonCircle(tk.layout.buttons[8])
	if got := fb.pixel(rx-rr+2, ry); got != rgb(colResetKey) {
		t.Fatalf("reset key face = %#04x; want %#04x", got, rgb(colResetKey))
	}
}

func TestAttachRejectsTinyFramebuffer(t *testing.T) {
	tk := newTestTask()
	tk.attach(newMemFB(32, 32))
	if tk.fb != nil {
		t.Fatal("a 32x32 framebuffer should leave the task headless")
	}
	tk.attach(nil)
	if tk.fb != nil {
		t.Fatal("nil framebuffer should leave the task headless")
	}
}

type step struct {
	kind    proto.Kind
	payload []byte
	until   string
}

// driverTask feeds steps to the tally task and collects its log until each step's marker line.
type driverTask struct {
	tally kernel.Capability
	log   kernel.Capability
	steps []step
	done  chan<- []string
}

func (d *driverTask) Run(ctx *kernel.Context) {
	var lines []string
	defer func() { d.done <- lines }()

	for _, s := range d.steps {
		if s.kind != 0 {
			if res := ctx.SendToCapResult(d.tally, uint16(s.kind), s.payload, kernel.Capability{}); res != kernel.SendOK {
				lines = append(lines, "send: "+res.String())
				return
			}
		}
		for {
			msg, ok := ctx.Recv(d.log)
			if !ok {
				return
			}
			line := string(msg.Payload())
			lines = append(lines, line)
			if line == s.until {
				break
			}
		}
	}
}

func TestTaskHeadlessThroughKernel(t *testing.T) {
	k := kernel.New()
	tallyEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	logEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)

	tk := New(nil, tally.DefaultRoster(), tallyEP.Restrict(kernel.RightRecv), Caps{Log: logEP.Restrict(kernel.RightSend)})
	k.AddTask(tk)

	done := make(chan []string, 1)
	k.AddTask(&driverTask{
		tally: tallyEP.Restrict(kernel.RightSend),
		log:   logEP.Restrict(kernel.RightRecv),
		steps: []step{
			{until: "LCD LYMPH 000 0.0% | MONO 000 0.0% | TOTAL 000 0%"},
			{kind: proto.MsgTallyIncrement, payload: proto.TallyIncrementPayload("seg"), until: "LCD LYMPH 000 0.0% | MONO 000 0.0% | TOTAL 001 100%"},
			{kind: proto.MsgTermInput, payload: []byte("6"), until: "LCD LYMPH 000 0.0% | MONO 000 0.0% | TOTAL 002 100%"},
			{kind: proto.MsgSerialData, payload: []byte("+ lymph\n"), until: "LCD LYMPH 001 33.3% | MONO 000 0.0% | TOTAL 003 100%"},
			{kind: proto.MsgTallyIncrement, payload: proto.TallyIncrementPayload("neutro"), until: `tally: unknown cell "neutro"`},
			{kind: proto.MsgSerialData, payload: []byte("show\n"), until: "LYMPH 001 33.3% | MONO 000 0.0% | TOTAL 003 100%"},
			{kind: proto.MsgTallyReset, until: "LCD LYMPH 000 0.0% | MONO 000 0.0% | TOTAL 000 0%"},
		},
		done: done,
	})

	var lines []string
	select {
	case lines = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the tally task")
	}

	var events []string
	for _, l := range lines {
		if strings.HasPrefix(l, "tally:") {
			events = append(events, l)
		}
	}
	want := []string{
		"tally: ready, 8 cells, headless",
		"tally: seg +1 total=001",
		"tally: seg +1 total=002",
		"tally: lymph +1 total=003",
		`tally: unknown cell "neutro"`,
		"tally: reset",
	}
	if strings.Join(events, "\n") != strings.Join(want, "\n") {
		t.Fatalf("events = %q; want %q\nall lines: %q", events, want, lines)
	}
	if total(tk) != 0 {
		t.Fatalf("total = %d after reset; want 0", total(tk))
	}
}

type memDisplay struct{ fb *memFB }

func (d memDisplay) Framebuffer() hal.Framebuffer { return d.fb }

func TestPresentFailureLoggedOnce(t *testing.T) {
	k := kernel.New()
	tallyEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	logEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)

	fb := newMemFB(320, 320)
	fb.err = errors.New("panel offline")
	tk := New(memDisplay{fb: fb}, nil, tallyEP.Restrict(kernel.RightRecv), Caps{Log: logEP.Restrict(kernel.RightSend)})
	k.AddTask(tk)

	done := make(chan []string, 1)
	k.AddTask(&driverTask{
		tally: tallyEP.Restrict(kernel.RightSend),
		log:   logEP.Restrict(kernel.RightRecv),
		steps: []step{
			{until: "tally: present: panel offline"},
			{kind: proto.MsgTermInput, payload: []byte("6"), until: "tally: seg +1 total=001"},
			{kind: proto.MsgTermInput, payload: []byte("66"), until: "tally: seg +1 total=003"},
		},
		done: done,
	})

	var lines []string
	select {
	case lines = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the tally task")
	}

	var failures int
	for _, l := range lines {
		if strings.HasPrefix(l, "tally: present:") {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("present failure logged %d times; want 1\nlines: %q", failures, lines)
	}
}
