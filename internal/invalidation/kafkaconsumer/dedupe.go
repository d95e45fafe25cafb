package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type revisionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newRevisionDedupe(size int) *revisionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &revisionDedupe{lru: c}
}

// shouldApply reports whether rev is newer than the last applied revision of
// key. Revision zero always applies.
func (d *revisionDedupe) shouldApply(key string, rev uint64) bool {
	if rev == 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && rev <= last {
		return false
	}
	return true
}

// applied records rev once the event has been processed successfully, so a
// failed attempt is retried on redelivery.
func (d *revisionDedupe) applied(key string, rev uint64) {
	if rev == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && rev <= last {
		return
	}
	d.lru.Add(key, rev)
}
