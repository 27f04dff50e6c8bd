// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/majeff/mosquito-pt2d/internal/aggregate"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Statistics tracks bridge activity and error counts
type Statistics struct {
	StartTime time.Time

	// Counters
	Iterations      uint64
	Commands        uint64
	ParseErrors     uint64
	BusyRejects     uint64
	Sessions        uint64
	Completed       uint64
	Timeouts        uint64
	PhaseMismatches uint64
	FrameErrors     uint64
	SingleReads     uint64
	ReplyTimeouts   uint64
	PassthroughOut  uint64 // bus bytes forwarded to the host
	Rediscoveries   uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{StartTime: now}
}

// RecordOutcome counts a finished composite or single query. A nil error
// is a completed query.
func (s *Statistics) RecordOutcome(err error) {
	switch {
	case err == nil:
		s.Completed++
	case errors.Is(err, aggregate.ErrTimeout):
		s.Timeouts++
	case errors.Is(err, aggregate.ErrPhaseMismatch):
		s.PhaseMismatches++
	case errors.Is(err, lobot.ErrChecksum), errors.Is(err, lobot.ErrInvalidLength), errors.Is(err, lobot.ErrIncompleteFrame):
		s.FrameErrors++
	}
}

// Report is the STATS reply
type Report struct {
	Status          string  `json:"status"`
	UptimeS         int64   `json:"uptime_s"`
	Iterations      uint64  `json:"iterations"`
	LoopRate        float64 `json:"loop_rate"`
	Commands        uint64  `json:"commands"`
	ParseErrors     uint64  `json:"parse_errors"`
	BusyRejects     uint64  `json:"busy"`
	Sessions        uint64  `json:"sessions"`
	Completed       uint64  `json:"completed"`
	Timeouts        uint64  `json:"timeouts"`
	PhaseMismatches uint64  `json:"phase_mismatches"`
	FrameErrors     uint64  `json:"frame_errors"`
	SingleReads     uint64  `json:"single_reads"`
	ReplyTimeouts   uint64  `json:"reply_timeouts"`
	PassthroughOut  uint64  `json:"passthrough_bytes"`
	Rediscoveries   uint64  `json:"rediscoveries"`
}

// Report snapshots the counters and derives the loop rate
func (s *Statistics) Report(now time.Time) Report {
	elapsed := now.Sub(s.StartTime)
	r := Report{
		Status:          "ok",
		UptimeS:         int64(elapsed / time.Second),
		Iterations:      s.Iterations,
		Commands:        s.Commands,
		ParseErrors:     s.ParseErrors,
		BusyRejects:     s.BusyRejects,
		Sessions:        s.Sessions,
		Completed:       s.Completed,
		Timeouts:        s.Timeouts,
		PhaseMismatches: s.PhaseMismatches,
		FrameErrors:     s.FrameErrors,
		SingleReads:     s.SingleReads,
		ReplyTimeouts:   s.ReplyTimeouts,
		PassthroughOut:  s.PassthroughOut,
		Rediscoveries:   s.Rediscoveries,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.LoopRate = float64(s.Iterations) / secs
	}
	return r
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	r := s.Report(time.Now())

	result := fmt.Sprintf("=== Bridge Statistics (%d seconds) ===\n", r.UptimeS)
	result += fmt.Sprintf("Iterations:      %8d (%.1f/sec)\n", r.Iterations, r.LoopRate)
	result += fmt.Sprintf("Commands:        %8d\n", r.Commands)
	if r.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d\n", r.ParseErrors)
	}
	if r.BusyRejects > 0 {
		result += fmt.Sprintf("Busy Rejects:    %8d\n", r.BusyRejects)
	}
	result += fmt.Sprintf("Sessions:        %8d\n", r.Sessions)
	result += fmt.Sprintf("Single Reads:    %8d\n", r.SingleReads)
	result += fmt.Sprintf("Completed:       %8d\n", r.Completed)
	if r.Timeouts > 0 {
		result += fmt.Sprintf("  Timeouts:         %5d\n", r.Timeouts)
	}
	if r.ReplyTimeouts > 0 {
		result += fmt.Sprintf("  Reply Timeouts:   %5d\n", r.ReplyTimeouts)
	}
	if r.PhaseMismatches > 0 {
		result += fmt.Sprintf("  Phase Mismatches: %5d\n", r.PhaseMismatches)
	}
	if r.FrameErrors > 0 {
		result += fmt.Sprintf("  Frame Errors:     %5d\n", r.FrameErrors)
	}
	result += fmt.Sprintf("Passthrough:     %8d bytes\n", r.PassthroughOut)
	result += "======================================\n"
	return result
}
