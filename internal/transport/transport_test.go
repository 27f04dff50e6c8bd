// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================
// Helpers
// ============================================================

func waitAvailable(t *testing.T, p Port, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.Available() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d bytes, have %d", n, p.Available())
		}
		time.Sleep(time.Millisecond)
	}
}

func readAll(p Port) []byte {
	var out []byte
	for {
		b, err := p.ReadByte()
		if err != nil {
			return out
		}
		out = append(out, b)
	}
}

// ============================================================
// Stream Tests
// ============================================================

func TestStream_ReadsIntoBuffer(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream(local, StreamConfig{Name: "bus"})
	defer s.Close()

	go remote.Write([]byte{0x55, 0x55, 0x01})
	waitAvailable(t, s, 3)

	if got := readAll(s); !bytes.Equal(got, []byte{0x55, 0x55, 0x01}) {
		t.Errorf("unexpected bytes: % X", got)
	}
	if _, err := s.ReadByte(); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty on drained stream, got %v", err)
	}
	remote.Close()
}

func TestStream_OverflowDropsBytes(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream(local, StreamConfig{BufferSize: 4})
	defer s.Close()

	go remote.Write([]byte("abcdefgh"))
	waitAvailable(t, s, 4)

	deadline := time.Now().Add(2 * time.Second)
	for s.Dropped() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Dropped() != 4 {
		t.Errorf("expected 4 dropped bytes, got %d", s.Dropped())
	}
	if got := string(readAll(s)); got != "abcd" {
		t.Errorf("expected buffered prefix abcd, got %q", got)
	}
	remote.Close()
}

func TestStream_FlushBeforeWrite(t *testing.T) {
	local, remote := net.Pipe()
	var mu sync.Mutex
	var tapped []Direction
	s := NewStream(local, StreamConfig{
		FlushBeforeWrite: true,
		Tap: func(dir Direction, data []byte) {
			mu.Lock()
			tapped = append(tapped, dir)
			mu.Unlock()
		},
	})
	defer s.Close()

	go remote.Write([]byte("stale"))
	waitAvailable(t, s, 5)

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := remote.Read(buf)
		received <- buf[:n]
	}()

	if _, err := s.Write([]byte("req")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if s.Available() != 0 {
		t.Errorf("stale input should be flushed before write, %d bytes left", s.Available())
	}
	if got := <-received; string(got) != "req" {
		t.Errorf("remote received %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	counts := map[Direction]int{}
	for _, d := range tapped {
		counts[d]++
	}
	if counts[DirIn] != 1 || counts[DirOut] != 1 {
		t.Errorf("expected one record per direction, got %v", tapped)
	}
	remote.Close()
}

func TestStream_ErrorAfterDrain(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream(local, StreamConfig{})

	go func() {
		remote.Write([]byte{0x42})
		remote.Close()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	b, err := s.ReadByte()
	if err != nil || b != 0x42 {
		t.Fatalf("expected buffered byte before error, got 0x%02X, %v", b, err)
	}
	if _, err := s.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF once drained, got %v", err)
	}
	s.Close()
}

func TestDirection_String(t *testing.T) {
	if DirIn.String() != "in" || DirOut.String() != "out" {
		t.Errorf("unexpected direction names %s/%s", DirIn, DirOut)
	}
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocket_HostRoundTrip(t *testing.T) {
	host, err := ListenWebSocket("127.0.0.1:0", "admin", "secret")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer host.Close()

	url := "ws://" + host.Addr().String() + "/bridge"
	client, err := DialWebSocket(url, "admin", "secret", false)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("<POS>\n")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}

	buf := make([]byte, 32)
	n, err := host.Read(buf)
	if err != nil {
		t.Fatalf("host read failed: %v", err)
	}
	if got := string(buf[:n]); got != "<POS>\n" {
		t.Errorf("host received %q", got)
	}

	if _, err := host.Write([]byte(`{"pan":135,"tilt":90}` + "\n")); err != nil {
		t.Fatalf("host write failed: %v", err)
	}
	n, err = client.Read(buf)
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if got := string(buf[:n]); !strings.HasPrefix(got, `{"pan":135`) {
		t.Errorf("client received %q", got)
	}
}

func TestWebSocket_RejectsBadCredentials(t *testing.T) {
	host, err := ListenWebSocket("127.0.0.1:0", "admin", "secret")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer host.Close()

	url := "ws://" + host.Addr().String() + "/bridge"
	_, err = DialWebSocket(url, "admin", "wrong", false)
	if err == nil {
		t.Fatal("expected dial with wrong password to fail")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Errorf("expected bad handshake, got %v", err)
	}
}

func TestWebSocket_UnsupportedScheme(t *testing.T) {
	if _, err := DialWebSocket("http://localhost/bridge", "", "", false); err == nil {
		t.Error("expected http scheme to be rejected")
	}
}

func TestWebSocket_CloseUnblocksRead(t *testing.T) {
	host, err := ListenWebSocket("127.0.0.1:0", "", "")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := host.Read(make([]byte, 8))
		done <- err
	}()

	host.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("expected ErrConnectionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestWebSocket_WriteWithoutClientIsDropped(t *testing.T) {
	host, err := ListenWebSocket("127.0.0.1:0", "", "")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer host.Close()

	n, err := host.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Errorf("write without client should succeed silently, got %d, %v", n, err)
	}
}
