// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package bridge

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/majeff/mosquito-pt2d/internal/aggregate"
	"github.com/majeff/mosquito-pt2d/internal/command"
	"github.com/majeff/mosquito-pt2d/internal/config"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/motion"
	"github.com/majeff/mosquito-pt2d/internal/response"
)

func (b *Bridge) dispatchLine(ctx context.Context, line string) {
	cmd, err := command.Parse(line)
	if err != nil {
		b.state.Stats.ParseErrors++
		b.log.WithField("line", line).WithError(err).Debug("rejected host line")
		b.fail(err)
		return
	}
	b.state.Stats.Commands++
	b.log.WithField("command", cmd.Keyword()).Debug("dispatch")
	b.Dispatch(ctx, cmd)
}

// Dispatch runs one parsed host command. Every command except Raw emits
// exactly one terminal line, now or when its bus query finishes.
func (b *Bridge) Dispatch(ctx context.Context, cmd command.Command) {
	switch c := cmd.(type) {
	case command.MoveAbsolute:
		b.move(func(p *motion.Parameters) motion.Target { return p.MoveTo(c.Pan, c.Tilt) })
	case command.MoveRelative:
		b.move(func(p *motion.Parameters) motion.Target { return p.MoveBy(c.DeltaPan, c.DeltaTilt) })
	case command.Home:
		b.move(func(p *motion.Parameters) motion.Target { return p.Home() })
	case command.Stop:
		b.stop()
	case command.SetSpeed:
		b.state.Motion.SetSpeed(c.Value)
		b.ok()
	case command.GetPosition:
		b.startSession(aggregate.PositionBoth, command.ViewFull)
	case command.GetStatus:
		b.startSession(aggregate.FullStatus, c.View)
	case command.ReadAngle:
		axis := b.axisFor(c.Address)
		b.startReply(ReplyAngle, c.Address, b.dialect.ReadAngle(c.Address, axis.Angle))
	case command.ReadVoltTemp:
		b.startReply(ReplyVoltTemp, c.Address, b.dialect.ReadVoltTemp(c.Address))
	case command.ConfigureServo:
		b.configureServo(c.Address)
	case command.SetID:
		b.state.Pan, b.state.Tilt = c.Pan, c.Tilt
		b.log.WithFields(logrus.Fields{"pan": c.Pan, "tilt": c.Tilt}).Info("servo addresses rebound")
		b.emit(response.Addresses{
			Status:  response.StatusOK,
			Message: "Servo addresses set",
			PanID:   int(c.Pan),
			TiltID:  int(c.Tilt),
		})
	case command.Raw:
		b.raw(c)
	case command.Calibrate:
		b.calibrate()
	case command.GetInfo:
		b.emit(b.info())
	case command.Detect:
		b.detect(ctx)
	case command.Stats:
		b.emit(b.state.Stats.Report(b.clock.Now()))
	default:
		b.fail(fmt.Errorf("%w: %s", command.ErrUnknownCommand, cmd.Keyword()))
	}
}

func (b *Bridge) requireAddresses() bool {
	if b.state.Resolved() {
		return true
	}
	b.fail(response.AddressUnresolved)
	return false
}

func (b *Bridge) axisFor(id uint8) motion.Axis {
	limits := b.state.Motion.Limits()
	if id != 0 && id == b.state.Tilt {
		return limits.Tilt
	}
	return limits.Pan
}

// writeBus sends a frame and repeats any outstanding query request, since
// the write discards the partial reply buffered before it.
func (b *Bridge) writeBus(frame []byte) error {
	if _, err := b.bus.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", response.BusError, err)
	}
	var err error
	switch m := b.state.Mode.(type) {
	case Aggregating:
		err = b.engine.Resend()
	case AwaitingReply:
		err = m.exchange.Resend()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", response.BusError, err)
	}
	return nil
}

func (b *Bridge) sendMove(t motion.Target, durationMs int) error {
	frame := b.dialect.Move(b.state.Pan, t.PanPosition, durationMs)
	frame = append(frame, b.dialect.Move(b.state.Tilt, t.TiltPosition, durationMs)...)
	return b.writeBus(frame)
}

func (b *Bridge) move(resolve func(*motion.Parameters) motion.Target) {
	if !b.requireAddresses() {
		return
	}
	t := resolve(b.state.Motion)
	b.log.WithFields(logrus.Fields{
		"pan":      t.PanAngle,
		"tilt":     t.TiltAngle,
		"duration": b.state.Motion.DurationMs(),
	}).Debug("move")
	if err := b.sendMove(t, b.state.Motion.DurationMs()); err != nil {
		b.fail(err)
		return
	}
	b.ok()
}

func (b *Bridge) stop() {
	if !b.requireAddresses() {
		return
	}
	b.abortSweep()
	frame := b.dialect.Stop(b.state.Pan)
	frame = append(frame, b.dialect.Stop(b.state.Tilt)...)
	if err := b.writeBus(frame); err != nil {
		b.fail(err)
		return
	}
	b.ok()
}

func (b *Bridge) busy() bool {
	if !b.state.Busy() {
		return false
	}
	b.state.Stats.BusyRejects++
	b.fail(aggregate.ErrBusy)
	return true
}

func (b *Bridge) startSession(kind aggregate.Kind, view command.View) {
	if b.busy() || !b.requireAddresses() {
		return
	}
	limits := b.state.Motion.Limits()
	targets := aggregate.Targets{
		Pan:       b.state.Pan,
		Tilt:      b.state.Tilt,
		PanAngle:  limits.Pan.Angle,
		TiltAngle: limits.Tilt.Angle,
	}
	if err := b.engine.Start(kind, view, targets, b.clock.Now()); err != nil {
		b.fail(fmt.Errorf("%w: %v", response.BusError, err))
		return
	}
	b.state.Stats.Sessions++
	b.state.Mode = Aggregating{Session: b.engine.Session()}
}

func (b *Bridge) startReply(kind ReplyKind, addr uint8, steps []dialect.Step) {
	if b.busy() {
		return
	}
	ex, err := dialect.Begin(b.bus, b.dialect, steps)
	if err != nil {
		b.fail(fmt.Errorf("%w: %v", response.BusError, err))
		return
	}
	b.state.Stats.SingleReads++
	b.state.Mode = AwaitingReply{
		Kind:     kind,
		Address:  addr,
		Deadline: b.clock.Now().Add(b.cfg.ReplyTimeout()),
		exchange: ex,
	}
}

func (b *Bridge) configureServo(addr uint8) {
	if b.busy() {
		return
	}
	b.log.WithField("id", addr).Info("writing servo hardware ID")
	b.startReply(ReplyConfigure, addr, b.dialect.WriteAddress(addr))
}

// raw forwards a payload to the bus. Replies arrive through passthrough,
// so raw traffic is refused while a query owns the bus.
func (b *Bridge) raw(c command.Raw) {
	if b.busy() {
		return
	}
	convert, invalid := b.dialect.Raw, command.ErrInvalidParameter
	if c.Verbatim {
		convert, invalid = b.dialect.Typed, command.ErrFormat
	}
	data, err := convert(c.Payload)
	if err != nil {
		b.fail(fmt.Errorf("%w: %v", invalid, err))
		return
	}
	if err := b.writeBus(data); err != nil {
		b.fail(err)
	}
}

func (b *Bridge) calibrate() {
	if b.state.Sweep != nil {
		b.state.Stats.BusyRejects++
		b.fail(aggregate.ErrBusy)
		return
	}
	if !b.requireAddresses() {
		return
	}
	b.log.Info("calibration sweep started")
	b.state.Sweep = newSweep(CalibrationPoints(b.state.Motion.Limits()), b.clock.Now())
}

// abortSweep ends a running calibration sweep and answers its CAL
func (b *Bridge) abortSweep() {
	if b.state.Sweep == nil {
		return
	}
	b.state.Sweep = nil
	b.log.Info("calibration sweep aborted")
	b.fail(response.CalibrationAbort)
}

func (b *Bridge) detect(ctx context.Context) {
	if b.busy() {
		return
	}
	b.abortSweep()
	if err := b.discover(ctx); err != nil {
		b.log.WithError(err).Debug("rescan")
	}
}

func (b *Bridge) info() response.Info {
	l := b.state.Motion.Limits()
	return response.Info{
		Status:          response.StatusOK,
		Message:         "pt2d bridge",
		PanID:           int(b.state.Pan),
		TiltID:          int(b.state.Tilt),
		PanMin:          l.Pan.Min,
		PanMax:          l.Pan.Max,
		TiltMin:         l.Tilt.Min,
		TiltMax:         l.Tilt.Max,
		Speed:           b.state.Motion.Speed(),
		Dialect:         b.dialect.Name(),
		FirmwareVersion: config.FirmwareVersion,
	}
}
