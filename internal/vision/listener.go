package vision

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/timeutil"
)

// Listener receives camera frames over UDP, computes their statistics, and
// keeps the most recent frame available for the gesture layer and the feed
// classifier.
type Listener struct {
	address      string
	rcvBuf       int
	logInterval  time.Duration
	sampleStride int
	buffer       []byte
	stats        *PacketStats
	clock        timeutil.Clock

	mu          sync.Mutex
	latest      Frame
	latestStats FrameStats
	haveFrame   bool
}

// ListenerConfig contains configuration options for the vision listener.
type ListenerConfig struct {
	Address      string
	RcvBuf       int
	LogInterval  time.Duration
	SampleStride int
	Stats        *PacketStats
	Clock        timeutil.Clock
}

// NewListener creates a new vision listener with the provided configuration.
func NewListener(config ListenerConfig) *Listener {
	stats := config.Stats
	if stats == nil {
		stats = &PacketStats{}
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	stride := config.SampleStride
	if stride < 1 {
		stride = DefaultSampleStride
	}
	rcvBuf := config.RcvBuf
	if rcvBuf <= 0 {
		rcvBuf = 1 << 20
	}
	logInterval := config.LogInterval
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &Listener{
		address:      config.Address,
		rcvBuf:       rcvBuf,
		logInterval:  logInterval,
		sampleStride: stride,
		buffer:       make([]byte, 65535), // max UDP datagram; frames are far smaller
		stats:        stats,
		clock:        clock,
	}
}

// Start begins listening for frame datagrams and processing them.
// Returns when the context is cancelled or an unrecoverable error occurs.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %v", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %v", err)
	}
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		monitoring.Logf("vision: failed to set UDP receive buffer to %d bytes: %v (some OSes clamp buffer sizes)", l.rcvBuf, err)
	}

	monitoring.Logf("vision: listening for camera frames on %s", l.address)

	go l.startStatsLogging(ctx)

	timeoutCount := 0
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("vision: listener shutting down")
			return ctx.Err()
		default:
			// Set a read timeout to allow checking for context cancellation
			if err := conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
				monitoring.Logf("vision: error setting read deadline: %v", err)
				continue
			}

			n, _, err := conn.ReadFromUDP(l.buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					timeoutCount++
					if timeoutCount%30 == 0 {
						monitoring.Logf("vision: no frames received for %d seconds", timeoutCount)
					}
					continue
				}
				monitoring.Logf("vision: error reading UDP packet: %v", err)
				continue
			}

			timeoutCount = 0
			l.HandleDatagram(l.buffer[:n])
		}
	}
}

// HandleDatagram decodes one frame datagram and updates the latest-frame
// state. Exposed so the pcap replay path and tests can inject datagrams
// without a socket. The datagram buffer may be reused by the caller after
// this returns.
func (l *Listener) HandleDatagram(datagram []byte) {
	l.stats.AddPacket(len(datagram))

	frame, err := ParseFrame(datagram)
	if err != nil {
		l.stats.AddBadPacket()
		return
	}

	now := l.clock.Now()
	fs := ComputeFrameStats(frame, l.sampleStride, now)
	l.stats.AddFrame(fs.IsBlack)

	l.mu.Lock()
	if cap(l.latest.Pixels) < len(frame.Pixels) {
		l.latest.Pixels = make([]byte, len(frame.Pixels))
	}
	l.latest.Pixels = l.latest.Pixels[:len(frame.Pixels)]
	copy(l.latest.Pixels, frame.Pixels)
	l.latest.Width = frame.Width
	l.latest.Height = frame.Height
	l.latestStats = fs
	l.haveFrame = true
	l.mu.Unlock()
}

// LatestStats returns the statistics of the most recent frame. The bool is
// false until the first frame arrives.
func (l *Listener) LatestStats() (FrameStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latestStats, l.haveFrame
}

// LatestFrame returns a copy of the most recent frame for the classifier.
func (l *Listener) LatestFrame() (Frame, FrameStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.haveFrame {
		return Frame{}, FrameStats{}, false
	}
	pixels := make([]byte, len(l.latest.Pixels))
	copy(pixels, l.latest.Pixels)
	return Frame{Width: l.latest.Width, Height: l.latest.Height, Pixels: pixels}, l.latestStats, true
}

func (l *Listener) startStatsLogging(ctx context.Context) {
	ticker := l.clock.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.stats.LogStats()
		}
	}
}
