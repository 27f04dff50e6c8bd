// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package watchdog terminates a stalled scheduler. The loop kicks it every
// iteration; if no kick arrives within the timeout the expiry handler runs,
// which in the bridge logs and exits non-zero so a supervisor restarts the
// process. Expiry is never recovered in software.
package watchdog

import (
	"sync"
	"time"
)

// DefaultTimeout matches the bridge firmware's 2 s window
const DefaultTimeout = 2 * time.Second

// Watchdog is a resettable one-shot timer
type Watchdog struct {
	timeout  time.Duration
	onExpire func()

	mu      sync.Mutex
	timer   *time.Timer
	kicks   uint64
	expired bool
}

// New creates a disabled watchdog
func New(timeout time.Duration, onExpire func()) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Watchdog{timeout: timeout, onExpire: onExpire}
}

// Enable arms the timer. Kicks before Enable are ignored, which lets
// startup discovery run unguarded.
func (w *Watchdog) Enable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	if w.timer == nil {
		w.mu.Unlock()
		return
	}
	w.expired = true
	w.mu.Unlock()

	if w.onExpire != nil {
		w.onExpire()
	}
}

// Kick restarts the timeout window
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil {
		return
	}
	w.timer.Reset(w.timeout)
	w.kicks++
}

// Stop disarms the watchdog
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Enabled reports whether the watchdog is armed
func (w *Watchdog) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

// Expired reports whether the timeout has fired
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

// Kicks returns how many kicks were accepted
func (w *Watchdog) Kicks() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kicks
}

// Timeout returns the configured window
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}
