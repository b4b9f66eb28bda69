// Package playback steps through historical rows at a chosen rate, feeding
// them to a sink one at a time.
package playback

import (
	"sync"
	"time"

	"github.com/spectrumx/svi/core"
)

// Sink receives the rows of a running playback in order.
type Sink func(*core.DecodedRow)

// Player replays a fixed sequence of rows on a repeating timer. A player has
// a single owner; Stop must be called before the owner goes away so no timer
// keeps firing into a dead view.
type Player struct {
	rows     []*core.DecodedRow
	interval time.Duration
	sink     Sink

	mu      sync.Mutex
	index   int
	quit    chan struct{}
	running bool
	stopped bool
}

// NewPlayer returns a player over the given rows. The interval must be
// positive; the sink is called from the player's own goroutine.
func NewPlayer(rows []*core.DecodedRow, interval time.Duration, sink Sink) *Player {
	if interval <= 0 {
		interval = time.Second
	}
	return &Player{
		rows:     rows,
		interval: interval,
		sink:     sink,
	}
}

// Start begins or resumes playback. Starting a running or stopped player does
// nothing.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped || len(p.rows) == 0 {
		return
	}
	p.running = true
	p.quit = make(chan struct{})
	go p.run(p.quit)
}

func (p *Player) run(quit chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			row, ok := p.advance()
			if !ok {
				return
			}
			p.sink(row)
		case <-quit:
			return
		}
	}
}

func (p *Player) advance() (*core.DecodedRow, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.index >= len(p.rows) {
		p.running = false
		return nil, false
	}
	row := p.rows[p.index]
	p.index++
	return row, true
}

// Pause suspends playback; Start resumes at the current position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.quit)
}

// Stop ends playback for good and releases the timer. Stop is idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.running {
		close(p.quit)
	}
	p.stopped = true
	p.running = false
}

// Running indicates if the player is currently advancing.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Position returns the index of the next row to play.
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}
