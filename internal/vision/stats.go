package vision

import (
	"sync"
	"time"

	"github.com/jaspreeeet/kaku/internal/monitoring"
)

// PacketStats tracks receive-side counters for the vision listener.
type PacketStats struct {
	mu          sync.Mutex
	packets     int64
	bytes       int64
	frames      int64
	badPackets  int64
	blackFrames int64
	lastLogged  time.Time
}

// AddPacket records a received datagram.
func (s *PacketStats) AddPacket(size int) {
	s.mu.Lock()
	s.packets++
	s.bytes += int64(size)
	s.mu.Unlock()
}

// AddFrame records a successfully decoded frame.
func (s *PacketStats) AddFrame(isBlack bool) {
	s.mu.Lock()
	s.frames++
	if isBlack {
		s.blackFrames++
	}
	s.mu.Unlock()
}

// AddBadPacket records a datagram that failed to decode.
func (s *PacketStats) AddBadPacket() {
	s.mu.Lock()
	s.badPackets++
	s.mu.Unlock()
}

// Snapshot returns the current counters.
func (s *PacketStats) Snapshot() (packets, bytes, frames, badPackets, blackFrames int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes, s.frames, s.badPackets, s.blackFrames
}

// LogStats writes a one-line summary of the counters.
func (s *PacketStats) LogStats() {
	packets, bytes, frames, bad, black := s.Snapshot()
	monitoring.Logf("vision: %d packets (%d bytes), %d frames decoded, %d bad, %d black",
		packets, bytes, frames, bad, black)
}
