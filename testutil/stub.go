package testutil

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStub is the default error injected by StubBand.
var ErrStub = errors.New("stub band failure")

// Write records one WriteBlock call.
type Write struct {
	X, Y int
	Data []byte
}

// StubBand is an in-memory band backing store that records every write.
// It satisfies blockcache.BandIO.
type StubBand struct {
	mu       sync.Mutex
	tiles    map[[2]int][]byte
	writes   []Write
	reads    int
	failRead map[[2]int]error
	failWrit map[[2]int]error

	// Gate, when non-nil, blocks every WriteBlock until a value is received
	// or the channel is closed.
	Gate chan struct{}

	// Started, when non-nil, receives the coordinates of each write before
	// it waits on Gate.
	Started chan [2]int
}

// NewStubBand creates an empty stub.
func NewStubBand() *StubBand {
	return &StubBand{
		tiles:    make(map[[2]int][]byte),
		failRead: make(map[[2]int]error),
		failWrit: make(map[[2]int]error),
	}
}

// Set stores tile contents without recording a write.
func (s *StubBand) Set(x, y int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[[2]int{x, y}] = append([]byte(nil), data...)
}

// Tile returns the stored contents of (x, y).
func (s *StubBand) Tile(x, y int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.tiles[[2]int{x, y}]
	return d, ok
}

// FailRead makes reads of (x, y) fail with err. A nil err clears the fault.
func (s *StubBand) FailRead(x, y int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failRead, [2]int{x, y})
		return
	}
	s.failRead[[2]int{x, y}] = err
}

// FailWrite makes writes of (x, y) fail with err. A nil err clears the fault.
func (s *StubBand) FailWrite(x, y int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failWrit, [2]int{x, y})
		return
	}
	s.failWrit[[2]int{x, y}] = err
}

// Writes returns a copy of the recorded writes in call order.
func (s *StubBand) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// WriteCount returns the number of successful writes.
func (s *StubBand) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// ReadCount returns the number of ReadBlock calls.
func (s *StubBand) ReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// ReadBlock copies the stored tile into buf, zero-filling missing tiles.
func (s *StubBand) ReadBlock(x, y int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if err := s.failRead[[2]int{x, y}]; err != nil {
		return err
	}
	d, ok := s.tiles[[2]int{x, y}]
	if !ok {
		clear(buf)
		return nil
	}
	if len(d) != len(buf) {
		return fmt.Errorf("stub tile (%d,%d): size %d, want %d", x, y, len(d), len(buf))
	}
	copy(buf, d)
	return nil
}

// WriteBlock stores a copy of buf and records the write.
func (s *StubBand) WriteBlock(x, y int, buf []byte) error {
	if s.Started != nil {
		s.Started <- [2]int{x, y}
	}
	if s.Gate != nil {
		<-s.Gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failWrit[[2]int{x, y}]; err != nil {
		return err
	}
	data := append([]byte(nil), buf...)
	s.tiles[[2]int{x, y}] = data
	s.writes = append(s.writes, Write{X: x, Y: y, Data: data})
	return nil
}
