package audio

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	ErrSinkClosed = errors.New("audio: sink closed")
	ErrQueueFull  = errors.New("audio: player queue full")
)

// Sink plays PCM buffers at the absolute times the scheduler assigns.
type Sink interface {
	// Schedule queues a buffer to start playing at the given time.
	Schedule(buf PCMBuffer, at time.Time) error
	// RampGain fades the output level toward target over the fade
	// window. The current level is the ramp's starting point.
	RampGain(target float64, fade time.Duration)
	Close() error
}

// Factory creates a fresh sink. The session discards a sink whenever
// pending audio must be dropped and builds a new one from the factory.
type Factory func() (Sink, error)

const sinkQueueSize = 64

type scheduledBuffer struct {
	buf     PCMBuffer
	startAt time.Time
}

// PlayerSink pipes PCM into an external player process such as
// `sox -t raw -r 48000 -b 16 -c 2 -e signed-integer - -d`.
// A feed goroutine holds each buffer until its start time.
type PlayerSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	queue chan scheduledBuffer
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	ramp   gainRamp
}

// NewPlayerSink launches the player command and starts the feed loop.
func NewPlayerSink(command string) (*PlayerSink, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("audio: empty player command")
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start player: %w", err)
	}

	p := &PlayerSink{
		cmd:   cmd,
		stdin: stdin,
		queue: make(chan scheduledBuffer, sinkQueueSize),
		done:  make(chan struct{}),
		ramp:  gainRamp{from: 1, to: 1},
	}
	go p.run()
	return p, nil
}

func (p *PlayerSink) Schedule(buf PCMBuffer, at time.Time) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	select {
	case p.queue <- scheduledBuffer{buf: buf, startAt: at}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *PlayerSink) RampGain(target float64, fade time.Duration) {
	p.mu.Lock()
	now := time.Now()
	p.ramp = gainRamp{from: p.ramp.at(now), to: target, start: now, fade: fade}
	p.mu.Unlock()
}

func (p *PlayerSink) run() {
	for {
		select {
		case item := <-p.queue:
			if wait := time.Until(item.startAt); wait > 0 {
				select {
				case <-time.After(wait):
				case <-p.done:
					return
				}
			}
			p.write(item.buf)
		case <-p.done:
			return
		}
	}
}

func (p *PlayerSink) write(buf PCMBuffer) {
	p.mu.Lock()
	ramp := p.ramp
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	samples := applyRamp(buf, ramp, time.Now())
	if _, err := p.stdin.Write(SamplesToBytes(samples)); err != nil {
		log.Printf("⚠️ Player write failed: %v", err)
	}
}

// Close stops the feed loop, closes the player's stdin, and waits for
// the process to exit. Safe to call more than once.
func (p *PlayerSink) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.stdin.Close()
	return p.cmd.Wait()
}

// gainRamp interpolates between two gain levels over a fade window.
type gainRamp struct {
	from  float64
	to    float64
	start time.Time
	fade  time.Duration
}

// at returns the gain level at time t.
func (g gainRamp) at(t time.Time) float64 {
	if g.fade <= 0 || !t.Before(g.start.Add(g.fade)) {
		return g.to
	}
	if t.Before(g.start) {
		return g.from
	}
	progress := float64(t.Sub(g.start)) / float64(g.fade)
	return g.from + (g.to-g.from)*smoothstep(progress)
}

// smoothstep eases a 0..1 progress value with zero slope at both ends,
// which keeps fade edges click-free.
func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// applyRamp scales a buffer by the ramp's gain. The envelope advances
// across the buffer's duration so a fade lands mid-buffer instead of
// stepping at chunk boundaries.
func applyRamp(buf PCMBuffer, ramp gainRamp, start time.Time) []int16 {
	first := ramp.at(start)
	if first == ramp.at(start.Add(buf.Duration)) {
		if first == 1 {
			return buf.Samples
		}
		return applyGain(buf.Samples, first)
	}

	n := len(buf.Samples)
	out := make([]int16, n)
	for i, s := range buf.Samples {
		offset := time.Duration(i) * buf.Duration / time.Duration(n)
		out[i] = clip(float64(s) * ramp.at(start.Add(offset)))
	}
	return out
}

func applyGain(samples []int16, gain float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clip(float64(s) * gain)
	}
	return out
}

func clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
