//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type hostKeyboard struct {
	ch   chan KeyEvent
	gate runeGate
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

// hostKeyMap lists the navigation keys forwarded as key codes.
var hostKeyMap = []struct {
	key  ebiten.Key
	code KeyCode
}{
	{ebiten.KeyArrowUp, KeyUp},
	{ebiten.KeyArrowDown, KeyDown},
	{ebiten.KeyArrowLeft, KeyLeft},
	{ebiten.KeyArrowRight, KeyRight},
	{ebiten.KeyEnter, KeyEnter},
	{ebiten.KeyNumpadEnter, KeyEnter},
	{ebiten.KeyEscape, KeyEscape},
	{ebiten.KeyBackspace, KeyBackspace},
	{ebiten.KeyDelete, KeyDelete},
}

// runeKeys maps the counting runes to the physical keys that type them.
var runeKeys = map[rune][]ebiten.Key{
	'0': {ebiten.KeyDigit0, ebiten.KeyNumpad0},
	'1': {ebiten.KeyDigit1, ebiten.KeyNumpad1},
	'2': {ebiten.KeyDigit2, ebiten.KeyNumpad2},
	'3': {ebiten.KeyDigit3, ebiten.KeyNumpad3},
	'4': {ebiten.KeyDigit4, ebiten.KeyNumpad4},
	'5': {ebiten.KeyDigit5, ebiten.KeyNumpad5},
	'6': {ebiten.KeyDigit6, ebiten.KeyNumpad6},
	'7': {ebiten.KeyDigit7, ebiten.KeyNumpad7},
	'8': {ebiten.KeyDigit8, ebiten.KeyNumpad8},
	'9': {ebiten.KeyDigit9, ebiten.KeyNumpad9},
}

func runeKeyDown(r rune) bool {
	for _, key := range runeKeys[r] {
		if ebiten.IsKeyPressed(key) {
			return true
		}
	}
	return false
}

func (k *hostKeyboard) poll() {
	emit := func(ev KeyEvent) {
		select {
		case k.ch <- ev:
		default:
		}
	}

	// Letter and digit keys (including the numpad) arrive as text input. The
	// OS repeats held keys there, so digits pass once per press.
	for _, r := range k.gate.filter(ebiten.AppendInputChars(nil), runeKeyDown) {
		emit(KeyEvent{Press: true, Rune: r})
	}

	for _, m := range hostKeyMap {
		if inpututil.IsKeyJustPressed(m.key) {
			emit(KeyEvent{Code: m.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(m.key) {
			emit(KeyEvent{Code: m.code, Press: false})
		}
	}
}
