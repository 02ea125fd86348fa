package gesture

import (
	"time"

	"github.com/cwarden/skuld/internal/clock"
)

// DefaultBatchInterval is one frame at 60 Hz.
const DefaultBatchInterval = 16 * time.Millisecond

// batcher coalesces pointer moves. Only the latest position is kept and each
// tick processes it once, however many moves arrived in between.
type batcher struct {
	sched    clock.Scheduler
	interval time.Duration
	process  func(Point)

	latest  Point
	pending bool
	timer   clock.Timer
}

func (b *batcher) push(p Point) {
	b.latest = p
	b.pending = true
	if b.timer == nil {
		b.timer = b.sched.AfterFunc(b.interval, b.tick)
	}
}

func (b *batcher) tick() {
	b.timer = nil
	b.run()
}

// flush processes a pending position now and cancels the tick.
func (b *batcher) flush() {
	clock.StopTimer(b.timer)
	b.timer = nil
	b.run()
}

// cancel drops a pending position without processing it.
func (b *batcher) cancel() {
	clock.StopTimer(b.timer)
	b.timer = nil
	b.pending = false
}

func (b *batcher) run() {
	if !b.pending {
		return
	}
	b.pending = false
	b.process(b.latest)
}
