package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/img-relay/pkg/utils"
)

type hostSlot struct {
	sem      *semaphore.Weighted
	inFlight int64     // held + waiting
	idleFrom time.Time // set when inFlight drops to zero
}

// HostSemaphorePool caps concurrent outbound page fetches per platform host.
// One pool is shared by every extractor so the cap holds process-wide.
// Mobile and www variants of a host share a slot.
type HostSemaphorePool struct {
	slots map[string]*hostSlot
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool allowing maxPerHost concurrent fetches per host.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 4
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		slots: make(map[string]*hostSlot),
		limit: limit,
		log:   log,
	}
}

// HostKey folds a hostname onto the key its permits are counted under.
func HostKey(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, prefix := range []string{"www.", "m.", "mobile."} {
		if trimmed, ok := strings.CutPrefix(host, prefix); ok && strings.Contains(trimmed, ".") {
			return trimmed
		}
	}
	return host
}

// Acquire blocks until a permit for host is free or ctx ends. The returned
// release func is safe to call more than once.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) (func(), error) {
	key := HostKey(host)

	p.mu.Lock()
	slot, ok := p.slots[key]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(p.limit)}
		p.slots[key] = slot
		p.log.WithFields(logrus.Fields{"host": key, "limit": p.limit}).Debug("Tracking new host")
	}
	slot.inFlight++
	p.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		p.done(slot)
		p.log.WithField("host", key).Debugf("Gave up waiting for host permit: %v", err)
		return nil, fmt.Errorf("%w: host %s: %w", utils.ErrSemaphoreTimeout, key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			p.done(slot)
		})
	}, nil
}

func (p *HostSemaphorePool) done(slot *hostSlot) {
	p.mu.Lock()
	slot.inFlight--
	if slot.inFlight == 0 {
		slot.idleFrom = time.Now()
	}
	p.mu.Unlock()
}

// RunEviction drops hosts idle for at least interval, checking every interval
// until ctx is done. Users paste links from an unbounded set of hosts.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-ctx.Done():
			p.log.Debugf("Stopping host eviction: %v", ctx.Err())
			return
		}
	}
}

func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	before := len(p.slots)
	for key, slot := range p.slots {
		if slot.inFlight == 0 && !slot.idleFrom.After(cutoff) {
			delete(p.slots, key)
		}
	}
	if n := before - len(p.slots); n > 0 {
		p.log.Debugf("Evicted %d idle hosts, %d remain", n, len(p.slots))
	}
}

// Len returns the number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
