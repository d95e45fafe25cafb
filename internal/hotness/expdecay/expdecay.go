// Package expdecay scores keys with hit counts that halve every half-life.
package expdecay

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/tms-layers/internal/hotness"
)

const numShards = 64

type Tracker struct {
	halfLife float64 // seconds
	// entries below floor are dropped when seen by WithPrefix or a sweep
	floor float64
	// a shard sweeps its cold entries after this many new keys
	sweepEvery int

	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu      sync.RWMutex
	m       map[string]*counter
	inserts int
}

type counter struct {
	score float64
	last  time.Time
}

var _ hotness.Interface = (*Tracker)(nil)

func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = 5 * time.Minute
	}
	t := &Tracker{halfLife: halfLife.Seconds(), floor: 0.01, sweepEvery: 256, now: time.Now}
	for i := range t.shards {
		t.shards[i].m = make(map[string]*counter)
	}
	return t
}

func (t *Tracker) Inc(key string) {
	if key == "" {
		return
	}
	s := t.shardFor(key)
	n := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.m[key]
	if !ok {
		s.inserts++
		if s.inserts >= t.sweepEvery {
			t.sweep(s, n)
		}
		s.m[key] = &counter{score: 1, last: n}
		return
	}
	c.score = t.decayed(c, n) + 1
	c.last = n
}

// sweep drops the shard's entries that decayed below the floor. The caller
// holds the shard lock.
func (t *Tracker) sweep(s *shard, now time.Time) {
	s.inserts = 0
	for k, c := range s.m {
		if t.decayed(c, now) < t.floor {
			delete(s.m, k)
		}
	}
}

func (t *Tracker) Score(key string) float64 {
	if key == "" {
		return 0
	}
	s := t.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.m[key]
	if !ok {
		return 0
	}
	return t.decayed(c, t.now())
}

// WithPrefix scans every shard. Keys that decayed below the floor are
// removed on the way.
func (t *Tracker) WithPrefix(prefix string) map[string]float64 {
	n := t.now()
	out := map[string]float64{}
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k, c := range s.m {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			score := t.decayed(c, n)
			if score < t.floor {
				delete(s.m, k)
				continue
			}
			out[k] = score
		}
		s.mu.Unlock()
	}
	return out
}

func (t *Tracker) Reset(keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		s := t.shardFor(k)
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
	}
}

func (t *Tracker) Size() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].m)
		t.shards[i].mu.RUnlock()
	}
	return total
}

func (t *Tracker) decayed(c *counter, now time.Time) float64 {
	return decay(c.score, now.Sub(c.last).Seconds(), t.halfLife)
}

// decay applies score * e^(-ln2/halfLife * dt).
func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp(-math.Ln2/halfLife*dt)
}

func (t *Tracker) shardFor(key string) *shard {
	return &t.shards[xxhash.Sum64String(key)&(numShards-1)]
}
