package sensorbus

import (
	"bufio"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTestablePort_ReadWrite(t *testing.T) {
	port := NewTestablePort()
	port.AddReadData([]byte("M,1,0,0,100,0,0,0\n"))

	buf := make([]byte, 64)
	n, err := port.Read(buf)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if string(buf[:n]) != "M,1,0,0,100,0,0,0\n" {
		t.Errorf("Read = %q", buf[:n])
	}
	if port.ReadCalls != 1 {
		t.Errorf("ReadCalls = %d, want 1", port.ReadCalls)
	}

	if _, err := port.Write([]byte("EN\n")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if string(port.GetWrittenData()) != "EN\n" {
		t.Errorf("written = %q", port.GetWrittenData())
	}
}

func TestTestablePort_Errors(t *testing.T) {
	port := NewTestablePort()
	port.ReadError = errors.New("bad read")
	port.WriteError = errors.New("bad write")

	if _, err := port.Read(make([]byte, 8)); err == nil {
		t.Error("Read should return configured error")
	}
	// error is one-shot
	port.AddReadData([]byte("x"))
	if _, err := port.Read(make([]byte, 8)); err != nil {
		t.Errorf("second Read should succeed, got %v", err)
	}

	if _, err := port.Write([]byte("x")); err == nil {
		t.Error("Write should return configured error")
	}
	if _, err := port.Write([]byte("x")); err != nil {
		t.Errorf("second Write should succeed, got %v", err)
	}
}

func TestTestablePort_ClosedReturnsError(t *testing.T) {
	port := NewTestablePort()
	if err := port.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if _, err := port.Read(make([]byte, 8)); err == nil {
		t.Error("Read on closed port should fail")
	}
	if _, err := port.Write([]byte("x")); err == nil {
		t.Error("Write on closed port should fail")
	}
}

func TestTestablePort_BlockReads(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := port.Read(buf)
		if err != nil {
			got <- "err:" + err.Error()
			return
		}
		got <- string(buf[:n])
	}()

	select {
	case v := <-got:
		t.Fatalf("Read should block until data arrives, got %q", v)
	case <-time.After(50 * time.Millisecond):
	}

	port.AddReadData([]byte("M,9,0,0,100,0,0,0\n"))
	select {
	case v := <-got:
		if v != "M,9,0,0,100,0,0,0\n" {
			t.Errorf("Read = %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after AddReadData")
	}
}

func TestTestablePort_BlockReadsUnblocksOnClose(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true

	errCh := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 8))
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	port.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Read should fail when port closes while blocked")
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock on Close")
	}
}

func TestTestablePort_Reset(t *testing.T) {
	port := NewTestablePort()
	port.AddReadData([]byte("data"))
	port.Write([]byte("cmd"))
	port.Close()

	port.Reset()

	if port.Closed || port.ReadCalls != 0 || port.WriteCalls != 0 {
		t.Error("Reset did not clear state")
	}
	if port.ReadBuffer.Len() != 0 || port.WriteBuffer.Len() != 0 {
		t.Error("Reset did not clear buffers")
	}
}

func TestMockPortFactory(t *testing.T) {
	port := NewTestablePort()
	factory := NewMockPortFactory(port)

	got, err := factory.Open("/dev/ttyUSB0", PortOptions{BaudRate: 115200})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if got != Porter(port) {
		t.Error("Open should return the configured port")
	}

	last := factory.LastCall()
	if last == nil {
		t.Fatal("LastCall returned nil")
	}
	if last.Path != "/dev/ttyUSB0" {
		t.Errorf("Path = %q", last.Path)
	}
	if last.Opts.BaudRate != 115200 {
		t.Errorf("BaudRate = %d", last.Opts.BaudRate)
	}

	factory.Error = errors.New("no such device")
	if _, err := factory.Open("/dev/ttyUSB1", PortOptions{}); err == nil {
		t.Error("Open should return configured error")
	}

	factory.Reset()
	if factory.LastCall() != nil {
		t.Error("Reset should clear recorded calls")
	}
}

func TestNewMockBus_EmitsLines(t *testing.T) {
	bus := NewMockBus([]byte("M,1,0,0,100,0,0,0\n"), 10*time.Millisecond)
	defer bus.Close()

	scan := bufio.NewScanner(bus.port)
	lineCh := make(chan string, 1)
	go func() {
		if scan.Scan() {
			lineCh <- scan.Text()
		}
	}()

	select {
	case line := <-lineCh:
		if line != "M,1,0,0,100,0,0,0" {
			t.Errorf("mock line = %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("mock bus emitted no lines")
	}
}

func TestMockPort_CapturesCommands(t *testing.T) {
	bus := NewMockBus([]byte("M,1,0,0,100,0,0,0\n"), time.Hour)
	defer bus.Close()

	if err := bus.SendCommand("SR=20"); err != nil {
		t.Fatalf("SendCommand returned error: %v", err)
	}
	if !strings.Contains(bus.port.Commands(), "SR=20\n") {
		t.Errorf("commands = %q, want to contain SR=20", bus.port.Commands())
	}
}

func TestMockPort_WriteAfterClose(t *testing.T) {
	bus := NewMockBus([]byte("M,1,0,0,100,0,0,0\n"), time.Hour)
	bus.Close()

	if err := bus.SendCommand("EN"); err == nil {
		t.Error("SendCommand after Close should fail")
	}
}
