package app

import (
	"celltally/hal"
	"celltally/internal/buildinfo"
	"celltally/sparkos/kernel"
	"celltally/sparkos/services/click"
	"celltally/sparkos/services/keypad"
	"celltally/sparkos/services/logger"
	"celltally/sparkos/services/serial"
	"celltally/sparkos/tally"
	tallytask "celltally/sparkos/tasks/tally"
)

type system struct {
	k     *kernel.Kernel
	tally *tallytask.Task
}

type Config struct {
	// Roster is the counter set. Nil selects tally.DefaultRoster.
	Roster *tally.Roster
}

// New initializes and starts the counter with the default roster.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{})
}

func NewWithConfig(h hal.HAL, cfg Config) func() error {
	_ = newSystem(h, cfg)
	return func() error { return nil }
}

func newSystem(h hal.HAL, cfg Config) *system {
	installPanicHandler(h)
	if l := h.Logger(); l != nil {
		l.WriteLineString("app: celltally " + buildinfo.Short())
	}

	k := kernel.New()

	logEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	tallyEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)

	k.AddTask(logger.New(h.Logger(), logEP.Restrict(kernel.RightRecv)))

	caps := tallytask.Caps{Log: logEP.Restrict(kernel.RightSend)}

	if in := h.Input(); in != nil {
		k.AddTask(keypad.New(in, tallyEP.Restrict(kernel.RightSend)))
	}

	if s := h.Serial(); s != nil {
		serialEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
		k.AddTask(serial.New(s, serialEP.Restrict(kernel.RightRecv)))
		caps.Serial = serialEP.Restrict(kernel.RightSend)
		caps.Self = tallyEP.Restrict(kernel.RightSend)
	}

	if a := h.Audio(); a != nil {
		clickEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
		k.AddTask(click.New(a, clickEP.Restrict(kernel.RightRecv)))
		caps.Click = clickEP.Restrict(kernel.RightSend)
	}

	t := tallytask.New(h.Display(), cfg.Roster, tallyEP.Restrict(kernel.RightRecv), caps)
	k.AddTask(t)

	if ht := h.Time(); ht != nil {
		if ch := ht.Ticks(); ch != nil {
			go func() {
				for seq := range ch {
					k.TickTo(seq)
				}
			}()
		}
	}

	return &system{k: k, tally: t}
}
