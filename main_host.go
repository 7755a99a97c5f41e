//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"celltally/app"
	"celltally/hal"
)

func main() {
	var cfg hal.HeadlessConfig
	var serial optionalBool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window; the display is logged as text.")
	flag.IntVar(&cfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.Var(&serial, "serial", "Read tally commands from stdin (default true with -headless).")
	flag.BoolVar(&cfg.Host.Mute, "mute", false, "Disable the click sound.")
	flag.Parse()

	cfg.Host.Serial = serial.get(cfg.Enabled)

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, app.New, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(app.New, cfg.Host); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// optionalBool is a bool flag whose default depends on other flags.
type optionalBool struct {
	set, val bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return fmt.Sprint(b.val)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.val = true, v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

func (b *optionalBool) get(def bool) bool {
	if !b.set {
		return def
	}
	return b.val
}
