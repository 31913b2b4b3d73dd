// Package params carries viewer parameters from producers on other
// goroutines (a remote control surface, file pickers) to the render loop.
//
// Producers call SetPerspective, SetRange and LoadData at any time. The
// render loop calls Drain once per frame and applies the resulting Batch
// in a fixed order: perspective, range, dataset.
package params

import (
	"sync"

	"github.com/eapache/queue"
)

type kind int

const (
	kindPerspective kind = iota
	kindRange
	kindData
)

type message struct {
	kind        kind
	perspective bool
	rng         [2]float32
	data        []byte
}

// Batch is everything queued since the previous Drain. A nil field means
// nothing of that kind was queued. When several values of one kind were
// queued, the last one wins.
type Batch struct {
	Perspective *bool
	Range       *[2]float32
	Data        []byte

	// Messages is the number of messages coalesced into the batch.
	Messages int
}

// Empty reports whether the batch carries nothing to apply.
func (b Batch) Empty() bool {
	return b.Perspective == nil && b.Range == nil && b.Data == nil
}

// Queue is an unbounded multi-producer, single-consumer parameter queue.
// The zero value is not usable; call New.
type Queue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{q: queue.New()}
}

// SetPerspective queues a perspective projection toggle.
func (p *Queue) SetPerspective(on bool) {
	p.push(message{kind: kindPerspective, perspective: on})
}

// SetRange queues a normalization range. lo <= hi is not enforced.
func (p *Queue) SetRange(lo, hi float32) {
	p.push(message{kind: kindRange, rng: [2]float32{lo, hi}})
}

// LoadData queues a raw dataset. Ownership of data passes to the queue;
// the caller must not modify it afterwards.
func (p *Queue) LoadData(data []byte) {
	if data == nil {
		data = []byte{}
	}
	p.push(message{kind: kindData, data: data})
}

func (p *Queue) push(m message) {
	p.mu.Lock()
	p.q.Add(m)
	p.mu.Unlock()
}

// Len returns the number of messages waiting.
func (p *Queue) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Length()
}

// Drain removes every queued message and coalesces them into a Batch.
// It never blocks on producers beyond the internal lock.
func (p *Queue) Drain() Batch {
	p.mu.Lock()
	pending := make([]message, 0, p.q.Length())
	for p.q.Length() > 0 {
		pending = append(pending, p.q.Remove().(message))
	}
	p.mu.Unlock()

	var b Batch
	for _, m := range pending {
		switch m.kind {
		case kindPerspective:
			on := m.perspective
			b.Perspective = &on
		case kindRange:
			r := m.rng
			b.Range = &r
		case kindData:
			b.Data = m.data
		}
	}
	b.Messages = len(pending)
	return b
}
