// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package bridge runs the scheduler loop between the host channel and the
// servo bus. All bridge state is owned by the goroutine calling Step or
// Run.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/majeff/mosquito-pt2d/internal/aggregate"
	"github.com/majeff/mosquito-pt2d/internal/clock"
	"github.com/majeff/mosquito-pt2d/internal/command"
	"github.com/majeff/mosquito-pt2d/internal/config"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/discovery"
	"github.com/majeff/mosquito-pt2d/internal/hostline"
	"github.com/majeff/mosquito-pt2d/internal/motion"
	"github.com/majeff/mosquito-pt2d/internal/response"
	"github.com/majeff/mosquito-pt2d/internal/transport"
)

// maxPassthrough bounds the bus bytes forwarded per iteration
const maxPassthrough = 256

// Kicker is fed once per iteration. *watchdog.Watchdog satisfies it.
type Kicker interface {
	Kick()
}

// Options wires a Bridge to its channels
type Options struct {
	Config   *config.Config
	Dialect  dialect.Dialect
	Host     transport.Port
	Bus      transport.Port
	Clock    clock.Clock
	Watchdog Kicker
	Log      logrus.FieldLogger
}

// Bridge translates host commands to bus traffic
type Bridge struct {
	cfg      *config.Config
	dialect  dialect.Dialect
	host     transport.Port
	bus      transport.Port
	clock    clock.Clock
	watchdog Kicker
	log      logrus.FieldLogger

	out     *response.Emitter
	lines   *hostline.Reader
	engine  *aggregate.Engine
	scanner *discovery.Scanner

	state State
	err   error // first host write failure of the iteration
}

// New creates a bridge in Idle mode with no servo addresses bound. A nil
// Config uses config.Default.
func New(opts Options) *Bridge {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		config.Normalize(cfg)
	}
	d := opts.Dialect
	if d == nil {
		d = dialect.Lobot{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	b := &Bridge{
		cfg:      cfg,
		dialect:  d,
		host:     opts.Host,
		bus:      opts.Bus,
		clock:    clk,
		watchdog: opts.Watchdog,
		log:      log,
		out:      response.NewEmitter(opts.Host),
		lines:    hostline.NewReader(hostline.DefaultMaxLine),
		engine:   aggregate.NewEngine(opts.Bus, d, cfg.SessionTimeout()),
	}
	b.scanner = &discovery.Scanner{
		Port:    opts.Bus,
		Dialect: d,
		Config:  cfg.ScanConfig(),
		Clock:   clk,
		Idle:    b.kick,
		Log:     log,
	}
	b.state = State{
		Motion: motion.NewParameters(cfg.Profile(), cfg.Limits(), cfg.Motion.DefaultSpeed),
		Mode:   Idle{},
		Stats:  NewStatistics(clk.Now()),
	}
	return b
}

// State returns the scheduler state. It must only be read from the
// goroutine running the bridge.
func (b *Bridge) State() *State {
	return &b.state
}

// Bind sets the servo addresses without scanning
func (b *Bridge) Bind(pan, tilt uint8) {
	b.state.Pan, b.state.Tilt = pan, tilt
}

func (b *Bridge) kick() {
	if b.watchdog != nil {
		b.watchdog.Kick()
	}
}

func (b *Bridge) emit(v any) {
	b.keep(b.out.Emit(v))
}

func (b *Bridge) ok() {
	b.keep(b.out.OK())
}

func (b *Bridge) fail(err error) {
	b.log.WithError(err).Debug("command failed")
	b.keep(b.out.Error(err))
}

func (b *Bridge) keep(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

// Startup reports the bridge identity, waits for the servos to power up
// and binds the pan and tilt addresses. Discovery runs to completion
// before the loop starts. An unresolved role is reported to the host and
// returned; the bridge still runs without it.
func (b *Bridge) Startup(ctx context.Context) error {
	b.keep(b.out.Info(fmt.Sprintf("pt2d bridge v%s", config.FirmwareVersion)))
	b.keep(b.out.Info(fmt.Sprintf("Bus dialect: %s", b.dialect.Name())))

	if delay := b.cfg.StartupDelay(); delay > 0 {
		b.log.WithField("delay", delay).Debug("waiting for servos")
		b.clock.Sleep(delay)
	}

	b.keep(b.out.Info("Detecting servo addresses"))
	err := b.discover(ctx)
	if b.err != nil {
		err = errors.Join(err, b.err)
		b.err = nil
	}
	return err
}

// discover scans the bus and reports the bound addresses
func (b *Bridge) discover(ctx context.Context) error {
	res, err := b.scanner.Discover(ctx)
	if err != nil && !errors.Is(err, discovery.ErrAddressUnresolved) {
		b.fail(err)
		return err
	}
	b.state.Pan, b.state.Tilt = res.Pan, res.Tilt
	b.state.Stats.Rediscoveries++

	reply := response.Addresses{
		Status:  response.StatusOK,
		Message: "Servo addresses detected",
		PanID:   int(res.Pan),
		TiltID:  int(res.Tilt),
	}
	if err != nil {
		reply.Status = response.StatusError
		reply.Message = string(response.AddressUnresolved)
		b.log.WithError(err).Warn("servo discovery incomplete")
	}
	b.emit(reply)
	return err
}

// Run steps the bridge until ctx is done or a channel fails
func (b *Bridge) Run(ctx context.Context) error {
	delay := b.cfg.LoopDelay()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.Step(ctx); err != nil {
			return err
		}
		if delay > 0 {
			b.clock.Sleep(delay)
		}
	}
}

// Step runs one scheduler iteration: feed the watchdog, dispatch complete
// host lines, advance the current mode, then the calibration sweep. It
// returns an error only when a channel fails.
func (b *Bridge) Step(ctx context.Context) error {
	b.kick()
	b.state.Stats.Iterations++

	if err := b.readHost(ctx); err != nil {
		return err
	}
	now := b.clock.Now()
	if err := b.advance(now); err != nil {
		return err
	}
	b.advanceSweep(now)

	err := b.err
	b.err = nil
	return err
}

func (b *Bridge) readHost(ctx context.Context) error {
	for b.host.Available() > 0 {
		c, err := b.host.ReadByte()
		if errors.Is(err, transport.ErrEmpty) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("host: %w", err)
		}

		line, ok, err := b.lines.Feed(c)
		if err != nil {
			b.state.Stats.ParseErrors++
			b.fail(err)
			continue
		}
		if !ok {
			continue
		}
		b.dispatchLine(ctx, line)
	}
	return nil
}

// advance moves the current mode forward with the bus bytes available now
func (b *Bridge) advance(now time.Time) error {
	switch m := b.state.Mode.(type) {
	case Aggregating:
		out, done := b.engine.Step(now)
		if done {
			b.state.Mode = Idle{}
			b.finishSession(out)
		}
	case AwaitingReply:
		b.pumpReply(m, now)
	default:
		return b.passthrough()
	}
	return nil
}

// passthrough forwards bus bytes to the host unchanged
func (b *Bridge) passthrough() error {
	var buf [maxPassthrough]byte
	n := 0
	for n < len(buf) && b.bus.Available() > 0 {
		c, err := b.bus.ReadByte()
		if errors.Is(err, transport.ErrEmpty) {
			break
		}
		if err != nil {
			return fmt.Errorf("bus: %w", err)
		}
		buf[n] = c
		n++
	}
	if n > 0 {
		b.state.Stats.PassthroughOut += uint64(n)
		b.keep(b.out.Raw(buf[:n]))
	}
	return nil
}

func (b *Bridge) finishSession(out aggregate.Outcome) {
	b.state.Stats.RecordOutcome(out.Err)
	if out.Err != nil {
		b.log.WithFields(logrus.Fields{
			"kind":  out.Kind,
			"phase": out.Phase,
		}).WithError(out.Err).Debug("session failed")
		b.keep(b.out.RawLine(out.Raw))
		b.fail(out.Err)
		return
	}

	r := out.Result
	switch {
	case out.Kind == aggregate.PositionBoth:
		b.emit(response.Position{Pan: r.PanAngle, Tilt: r.TiltAngle})
	case out.View == command.ViewTemperature:
		b.emit(response.Temperature{PanTemp: r.PanTemp, TiltTemp: r.TiltTemp})
	case out.View == command.ViewVoltage:
		b.emit(response.Voltage{PanVoltage: r.PanVoltage, TiltVoltage: r.TiltVoltage})
	default:
		b.emit(response.FullStatus{
			Pan:         r.PanAngle,
			Tilt:        r.TiltAngle,
			PanTemp:     r.PanTemp,
			TiltTemp:    r.TiltTemp,
			PanVoltage:  r.PanVoltage,
			TiltVoltage: r.TiltVoltage,
		})
	}
}

func (b *Bridge) pumpReply(m AwaitingReply, now time.Time) {
	status, err := m.exchange.Pump()
	switch {
	case err != nil:
		b.state.Mode = Idle{}
		b.state.Stats.RecordOutcome(err)
		b.keep(b.out.RawLine(m.exchange.Raw()))
		b.fail(err)
	case status == dialect.Done:
		b.state.Mode = Idle{}
		b.state.Stats.RecordOutcome(nil)
		b.finishReply(m, m.exchange.Values())
	case now.After(m.Deadline):
		b.state.Mode = Idle{}
		b.replyTimeout(m)
	}
}

func (b *Bridge) finishReply(m AwaitingReply, values []int) {
	switch m.Kind {
	case ReplyAngle:
		b.emit(response.Angle{ID: int(m.Address), Angle: values[0]})
	case ReplyVoltTemp:
		b.emit(response.VoltTemp{ID: int(m.Address), Voltage: values[0], Temp: values[1]})
	case ReplyConfigure:
		b.emit(response.Target{
			Status:   response.StatusOK,
			Message:  "Servo hardware ID written",
			TargetID: int(m.Address),
		})
	}
}

func (b *Bridge) replyTimeout(m AwaitingReply) {
	b.state.Stats.ReplyTimeouts++
	if m.Kind == ReplyConfigure {
		b.emit(response.Target{
			Status:   response.StatusWarning,
			Message:  "No reply from servo, ID write sent",
			TargetID: int(m.Address),
		})
		return
	}
	if m.exchange.Partial() {
		b.keep(b.out.RawLine(m.exchange.Raw()))
		b.fail(response.IncompleteFrame)
		return
	}
	b.fail(response.ReplyTimeout)
}

func (b *Bridge) advanceSweep(now time.Time) {
	s := b.state.Sweep
	if s == nil {
		return
	}
	p, ok := s.take(now, b.cfg.SweepStep())
	if !ok {
		return
	}
	t := b.state.Motion.MoveTo(p.Pan, p.Tilt)
	if err := b.sendMove(t, b.cfg.Bridge.SweepMoveMs); err != nil {
		b.state.Sweep = nil
		b.fail(err)
		return
	}
	if s.Done() {
		b.state.Sweep = nil
		b.ok()
	}
}
