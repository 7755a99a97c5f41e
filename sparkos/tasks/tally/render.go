package tally

import (
	"image/color"
	"strings"

	"celltally/hal"
	"celltally/sparkos/kernel"
	"celltally/sparkos/tally"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	digitFont tinyfont.Fonter = &freemono.Bold12pt7b
	labelFont tinyfont.Fonter = &proggy.TinySZ8pt7b
)

var (
	colCasing    = color.RGBA{R: 0x2A, G: 0x2F, B: 0x3A, A: 0xFF}
	colBezel     = color.RGBA{R: 0x12, G: 0x14, B: 0x18, A: 0xFF}
	colLCD       = color.RGBA{R: 0x0E, G: 0x1A, B: 0x12, A: 0xFF}
	colTile      = color.RGBA{R: 0x14, G: 0x26, B: 0x1A, A: 0xFF}
	colLCDText   = color.RGBA{R: 0x7C, G: 0xFF, B: 0x9A, A: 0xFF}
	colTotalText = color.RGBA{R: 0xFF, G: 0xB0, B: 0x3A, A: 0xFF}
	colBadgeText = color.RGBA{R: 0x0E, G: 0x1A, B: 0x12, A: 0xFF}
	colKey       = color.RGBA{R: 0x3B, G: 0x44, B: 0x55, A: 0xFF}
	colKeyLit    = color.RGBA{R: 0x7A, G: 0x8C, B: 0xA8, A: 0xFF}
	colResetKey  = color.RGBA{R: 0xC0, G: 0x39, B: 0x2B, A: 0xFF}
	colResetLit  = color.RGBA{R: 0xF0, G: 0x6A, B: 0x5A, A: 0xFF}
	colSelect    = color.RGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}
	colKeyText   = color.RGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}
)

// layoutCols is the column count of both the LCD tiles and the button grid.
const layoutCols = 3

type rect struct {
	x, y, w, h int
}

func (r rect) inset(d int) rect {
	return rect{x: r.x + d, y: r.y + d, w: r.w - 2*d, h: r.h - 2*d}
}

// layout places n LCD tiles and n buttons: the cells followed by TOTAL / reset.
type layout struct {
	lcd     rect
	tiles   []rect
	buttons []rect
}

func newLayout(w, h, n int) (layout, bool) {
	const margin = 8
	if n <= 0 || w < 120 || h < 160 {
		return layout{}, false
	}
	rows := (n + layoutCols - 1) / layoutCols

	lcd := rect{x: margin, y: margin, w: w - 2*margin, h: h*3/5 - margin}
	keysY := lcd.y + lcd.h + margin
	keys := rect{x: margin, y: keysY, w: w - 2*margin, h: h - keysY - margin}

	l := layout{
		lcd:     lcd,
		tiles:   gridRects(lcd.inset(4), rows, n),
		buttons: gridRects(keys, rows, n),
	}
	return l, true
}

func gridRects(r rect, rows, n int) []rect {
	out := make([]rect, n)
	cw := r.w / layoutCols
	ch := r.h / rows
	for i := range out {
		out[i] = rect{x: r.x + (i%layoutCols)*cw, y: r.y + (i/layoutCols)*ch, w: cw, h: ch}
	}
	return out
}

// render draws the panel and presents it. A skipped frame is not an error.
func (t *Task) render() error {
	if t.fb == nil || kernel.InPanicMode() {
		return nil
	}
	c, ok := newCanvas(t.fb)
	if !ok {
		return nil
	}
	s := t.panel.Snapshot()

	c.fill(rect{w: c.w, h: c.h}, colCasing)
	c.fill(t.layout.lcd.inset(-3), colBezel)
	c.fill(t.layout.lcd, colLCD)

	total := s.Total()
	counters := s.Counters()
	for i, ctr := range counters {
		drawTile(c, t.layout.tiles[i], ctr.Label, tally.FormatCount(uint64(ctr.Count)),
			tally.FormatPercent(uint64(ctr.Count), total)+"%", colLCDText)
	}
	drawTile(c, t.layout.tiles[len(counters)], "TOTAL", tally.FormatCount(total),
		tally.TotalPercentText(total), colTotalText)

	for i, r := range t.layout.buttons {
		label, keyCap := "RESET", "0"
		if i < len(counters) {
			label = counters[i].Label
			keyCap = ""
			if i < 9 {
				keyCap = string(rune('1' + i))
			}
		}
		drawButton(c, r, keyCap, label, i == len(counters), i == t.sel, i == t.flash)
	}

	return c.Display()
}

func drawTile(c *canvas, r rect, label, count, percent string, fg color.RGBA) {
	r = r.inset(3)
	c.fill(r, colTile)

	small := ascent(labelFont)
	badge := rect{x: r.x + 4, y: r.y + 3, w: r.w - 8, h: small + 5}
	c.fill(badge, fg)
	c.textCentered(labelFont, r.x+r.w/2, badge.y+small+2, label, colBadgeText)

	countBase := badge.y + badge.h + 2 + ascent(digitFont)
	c.textCentered(digitFont, r.x+r.w/2, countBase, count, fg)
	c.textCentered(labelFont, r.x+r.w/2, countBase+int(labelFont.GetYAdvance()), percent, fg)
}

// buttonCircle places the round key at the left of its grid cell.
func buttonCircle(r rect) (cx, cy, radius int, ok bool) {
	radius = min(r.h, r.w/3)/2 - 3
	if radius < 4 {
		return 0, 0, 0, false
	}
	return r.x + radius + 6, r.y + r.h/2, radius, true
}

func drawButton(c *canvas, r rect, keyCap, label string, isReset, selected, lit bool) {
	cx, cy, radius, ok := buttonCircle(r)
	if !ok {
		return
	}

	face := colKey
	switch {
	case isReset && lit:
		face = colResetLit
	case isReset:
		face = colResetKey
	case lit:
		face = colKeyLit
	}
	if selected {
		c.fillCircle(cx, cy, radius+3, colSelect)
		c.fillCircle(cx, cy, radius+1, colCasing)
	}
	c.fillCircle(cx, cy, radius, face)

	small := ascent(labelFont)
	c.textCentered(labelFont, cx, cy+small/2, keyCap, colKeyText)
	c.text(labelFont, cx+radius+6, cy+small/2, label, colKeyText)
}

// ascent approximates the cap height of f from its line advance.
func ascent(f tinyfont.Fonter) int {
	return int(f.GetYAdvance()) * 5 / 8
}

// lcdRows renders the display contents as text, one line per tile row.
func lcdRows(s tally.Set) []string {
	total := s.Total()
	var cells []string
	for _, c := range s.Counters() {
		cells = append(cells, c.Label+" "+tally.FormatCount(uint64(c.Count))+" "+tally.FormatPercent(uint64(c.Count), total)+"%")
	}
	cells = append(cells, "TOTAL "+tally.FormatCount(total)+" "+tally.TotalPercentText(total))

	var rows []string
	for len(cells) > 0 {
		n := min(layoutCols, len(cells))
		rows = append(rows, strings.Join(cells[:n], " | "))
		cells = cells[n:]
	}
	return rows
}

// canvas draws into an RGB565 framebuffer and serves as the tinyfont target.
type canvas struct {
	fb     hal.Framebuffer
	buf    []byte
	w, h   int
	stride int
}

var _ drivers.Displayer = (*canvas)(nil)

func newCanvas(fb hal.Framebuffer) (*canvas, bool) {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return nil, false
	}
	buf := fb.Buffer()
	if buf == nil || fb.Width() <= 0 || fb.Height() <= 0 {
		return nil, false
	}
	return &canvas{fb: fb, buf: buf, w: fb.Width(), h: fb.Height(), stride: fb.StrideBytes()}, true
}

func (c *canvas) Size() (x, y int16) { return int16(c.w), int16(c.h) }

func (c *canvas) SetPixel(x, y int16, col color.RGBA) {
	c.put(int(x), int(y), hal.RGB565(col.R, col.G, col.B))
}

// Display presents the frame.
func (c *canvas) Display() error { return c.fb.Present() }

func (c *canvas) put(x, y int, pixel uint16) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	off := y*c.stride + x*2
	if off+1 >= len(c.buf) {
		return
	}
	c.buf[off] = byte(pixel)
	c.buf[off+1] = byte(pixel >> 8)
}

func (c *canvas) fill(r rect, col color.RGBA) {
	x0, x1 := clampInt(r.x, 0, c.w), clampInt(r.x+r.w, 0, c.w)
	y0, y1 := clampInt(r.y, 0, c.h), clampInt(r.y+r.h, 0, c.h)
	pixel := hal.RGB565(col.R, col.G, col.B)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.put(x, y, pixel)
		}
	}
}

func (c *canvas) fillCircle(cx, cy, radius int, col color.RGBA) {
	pixel := hal.RGB565(col.R, col.G, col.B)
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				c.put(cx+dx, cy+dy, pixel)
			}
		}
	}
}

func (c *canvas) text(f tinyfont.Fonter, x, baseline int, s string, col color.RGBA) {
	tinyfont.WriteLine(c, f, int16(x), int16(baseline), s, col)
}

func (c *canvas) textCentered(f tinyfont.Fonter, cx, baseline int, s string, col color.RGBA) {
	_, w := tinyfont.LineWidth(f, s)
	c.text(f, cx-int(w)/2, baseline, s, col)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
