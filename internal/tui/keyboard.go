// Package tui holds the small terminal helpers cmd/monitor uses: raw
// single-key input and ANSI color printing. Adapted from the teacher's
// ui/keypress_windows.go and ui/ui.go, generalized away from the
// calibration wizard's Y/N/retry/flash vocabulary to a plain command-key
// reader.
package tui

import (
	"sync"

	"github.com/eiannone/keyboard"
)

var (
	keyCh     chan rune
	startOnce sync.Once
)

// StartKeyEvents returns a channel emitting single-key runes read without
// Enter. It initializes one background reader the first time it is called;
// the channel is buffered, and if the keyboard can't be opened (e.g. no
// TTY), an inert channel is returned instead of an error, since cmd/monitor
// degrades to read-only polling in that case.
func StartKeyEvents() chan rune {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			return
		}
		go func() {
			defer keyboard.Close()
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					close(keyCh)
					return
				}
				if key == 0 {
					select {
					case keyCh <- char:
					default:
					}
				} else if key == keyboard.KeyEsc {
					select {
					case keyCh <- 27:
					default:
					}
				}
			}
		}()
	})
	if keyCh == nil {
		keyCh = make(chan rune, 64)
	}
	return keyCh
}

// DrainKeys discards any keys already buffered, so a stale keypress from
// before a screen redraw doesn't trigger the next command.
func DrainKeys() {
	ch := StartKeyEvents()
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
