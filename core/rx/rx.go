// Package rx provides sample sources for test mode, when no backend or
// sensor delivers captures.
package rx

import (
	"math"
	"math/rand"
	"time"
)

// NewRandomInput returns a SamplesInput producing synthetic IQ blocks at the
// given interval: noise with a slowly wandering carrier, so the waterfall
// shows recognizable structure.
func NewRandomInput(blockSize int, interval time.Duration) *RandomInput {
	result := RandomInput{
		samples: make(chan []complex128, 1),
		done:    make(chan struct{}),
	}

	go func() {
		carrier := 0.1
		for {
			carrier += (rand.Float64() - 0.5) * 0.01
			if carrier > 0.45 {
				carrier = 0.45
			}
			if carrier < -0.45 {
				carrier = -0.45
			}

			nextBlock := make([]complex128, blockSize)
			for i := range nextBlock {
				phase := 2 * math.Pi * carrier * float64(i)
				noise := complex((rand.Float64()-0.5)*0.1, (rand.Float64()-0.5)*0.1)
				nextBlock[i] = complex(math.Cos(phase), math.Sin(phase)) + noise
			}

			select {
			case result.samples <- nextBlock:
				time.Sleep(interval)
			case <-result.done:
				close(result.samples)
				return
			}
		}
	}()

	return &result
}

// RandomInput produces synthetic IQ blocks until it is closed.
type RandomInput struct {
	samples chan []complex128
	done    chan struct{}
}

// Samples channel of this input.
func (i *RandomInput) Samples() <-chan []complex128 {
	return i.samples
}

// Close stops the producer.
func (i *RandomInput) Close() error {
	close(i.done)
	return nil
}
