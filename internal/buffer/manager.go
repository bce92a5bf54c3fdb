package buffer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/logging"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// ErrInvalidCapacity indicates a non-positive buffer capacity.
var ErrInvalidCapacity = errors.New("buffer capacity must be positive")

// DropReason explains why a bundle left the buffer without being forwarded.
type DropReason string

const (
	// DropEvicted marks a resident bundle removed to make room.
	DropEvicted DropReason = "evicted"
	// DropRejected marks an incoming bundle that could not be admitted.
	DropRejected DropReason = "rejected"
	// DropDuplicate marks an incoming replica of a bundle already resident.
	DropDuplicate DropReason = "duplicate"
)

// DropHandler observes every drop.
type DropHandler func(b *model.Bundle, reason DropReason)

// ExpiryHandler observes every bundle removed for TTL expiry.
type ExpiryHandler func(b *model.Bundle)

// Option customises Manager construction.
type Option func(*Manager)

// WithSeed seeds the Random policy.
func WithSeed(seed uint64) Option {
	return func(m *Manager) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithDropHandler registers a callback for drops.
func WithDropHandler(fn DropHandler) Option {
	return func(m *Manager) { m.onDrop = fn }
}

// WithExpiryHandler registers a callback for expiries.
func WithExpiryHandler(fn ExpiryHandler) Option {
	return func(m *Manager) { m.onExpire = fn }
}

// WithLogger attaches a logger.
func WithLogger(log logging.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// Manager is a per-node bounded bundle store. Occupancy never exceeds
// capacity: room is made before a bundle is admitted, never after.
//
// A Manager is owned by a single goroutine and is not safe for concurrent
// use.
type Manager struct {
	capacity int64
	used     int64
	peak     int64
	policy   Policy

	bundles []*model.Bundle // insertion order
	byKey   map[string]*model.Bundle

	rng      *rand.Rand
	onDrop   DropHandler
	onExpire ExpiryHandler
	log      logging.Logger

	drops   int64
	expired int64
}

// New constructs an empty buffer.
func New(capacity int64, policy Policy, opts ...Option) (*Manager, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	if policy < OldestFirst || policy > PriorityAware {
		return nil, fmt.Errorf("%v: %w", policy, ErrUnknownPolicy)
	}
	m := &Manager{
		capacity: capacity,
		policy:   policy,
		byKey:    make(map[string]*model.Bundle),
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.rng == nil {
		WithSeed(1)(m)
	}
	return m, nil
}

// Policy returns the eviction policy.
func (m *Manager) Policy() Policy { return m.policy }

// Capacity returns the capacity in bytes.
func (m *Manager) Capacity() int64 { return m.capacity }

// Used returns the current occupancy in bytes.
func (m *Manager) Used() int64 { return m.used }

// Peak returns the highest occupancy observed.
func (m *Manager) Peak() int64 { return m.peak }

// Len returns the number of resident bundles.
func (m *Manager) Len() int { return len(m.bundles) }

// Utilization returns used/capacity in [0,1].
func (m *Manager) Utilization() float64 {
	return float64(m.used) / float64(m.capacity)
}

// DropCount returns how many bundles were evicted or rejected.
func (m *Manager) DropCount() int64 { return m.drops }

// ExpiredCount returns how many bundles were removed on TTL expiry.
func (m *Manager) ExpiredCount() int64 { return m.expired }

// Has reports whether a replica of the logical bundle key is resident.
func (m *Manager) Has(key string) bool {
	_, ok := m.byKey[key]
	return ok
}

// Get returns the resident replica of key.
func (m *Manager) Get(key string) (*model.Bundle, bool) {
	b, ok := m.byKey[key]
	return b, ok
}

// IDs returns the logical keys of all resident bundles in insertion order.
func (m *Manager) IDs() []string {
	keys := make([]string, 0, len(m.bundles))
	for _, b := range m.bundles {
		keys = append(keys, b.Key())
	}
	return keys
}

// Store admits b, evicting resident bundles under the policy when needed.
// Expired bundles are purged first. It returns false when b cannot be
// admitted; every such bundle is reported to the drop or expiry handler.
func (m *Manager) Store(now time.Time, b *model.Bundle) bool {
	m.EvictExpired(now)

	if b.IsExpired(now) {
		m.expire(b)
		return false
	}
	if _, dup := m.byKey[b.Key()]; dup {
		m.drop(b, DropDuplicate)
		return false
	}

	size := b.Size()
	if size > m.capacity {
		m.drop(b, DropRejected)
		return false
	}

	if m.used+size > m.capacity {
		candidates := m.evictable(b.Priority)
		var freeable int64
		for _, c := range candidates {
			freeable += c.Size()
		}
		if m.capacity-m.used+freeable < size {
			m.log.Debug(context.Background(), "buffer full; rejecting bundle",
				logging.String("bundle_id", b.Key()),
				logging.Int64("size", size),
				logging.Int64("used", m.used),
				logging.Int64("capacity", m.capacity),
			)
			m.drop(b, DropRejected)
			return false
		}
		for m.used+size > m.capacity {
			victim := m.pickVictim(candidates, now)
			candidates = removeFrom(candidates, victim)
			m.remove(victim)
			m.drop(victim, DropEvicted)
		}
	}

	m.bundles = append(m.bundles, b)
	m.byKey[b.Key()] = b
	m.used += size
	if m.used > m.peak {
		m.peak = m.used
	}
	return true
}

// EvictExpired removes every bundle whose TTL has lapsed at now and returns
// them.
func (m *Manager) EvictExpired(now time.Time) []*model.Bundle {
	var expired []*model.Bundle
	kept := m.bundles[:0]
	for _, b := range m.bundles {
		if b.IsExpired(now) {
			expired = append(expired, b)
			delete(m.byKey, b.Key())
			m.used -= b.Size()
			continue
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(m.bundles); i++ {
		m.bundles[i] = nil
	}
	m.bundles = kept
	for _, b := range expired {
		m.expire(b)
	}
	return expired
}

// Retrieve returns resident bundles matching pred in insertion order without
// removing them. A nil pred matches everything.
func (m *Manager) Retrieve(pred func(*model.Bundle) bool) []*model.Bundle {
	out := make([]*model.Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		if pred == nil || pred(b) {
			out = append(out, b)
		}
	}
	return out
}

// Remove takes the replica with copyID out of the buffer after a confirmed
// handoff or custody release.
func (m *Manager) Remove(copyID uint64) (*model.Bundle, bool) {
	for _, b := range m.bundles {
		if b.CopyID == copyID {
			m.remove(b)
			return b, true
		}
	}
	return nil, false
}

// Discard removes the resident replica of key without counting a drop; it
// is used when the bundle is known to be delivered elsewhere.
func (m *Manager) Discard(key string) (*model.Bundle, bool) {
	b, ok := m.byKey[key]
	if !ok {
		return nil, false
	}
	m.remove(b)
	return b, true
}

func (m *Manager) evictable(incoming model.Priority) []*model.Bundle {
	out := make([]*model.Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		if b.Priority <= incoming {
			out = append(out, b)
		}
	}
	return out
}

func (m *Manager) pickVictim(candidates []*model.Bundle, now time.Time) *model.Bundle {
	if m.policy == Random {
		return candidates[m.rng.IntN(len(candidates))]
	}
	victim := candidates[0]
	for _, c := range candidates[1:] {
		if m.policy.evictsBefore(c, victim, now) {
			victim = c
		}
	}
	return victim
}

func (m *Manager) remove(b *model.Bundle) {
	for i, r := range m.bundles {
		if r == b {
			copy(m.bundles[i:], m.bundles[i+1:])
			m.bundles[len(m.bundles)-1] = nil
			m.bundles = m.bundles[:len(m.bundles)-1]
			break
		}
	}
	delete(m.byKey, b.Key())
	m.used -= b.Size()
}

func (m *Manager) drop(b *model.Bundle, reason DropReason) {
	m.drops++
	if m.onDrop != nil {
		m.onDrop(b, reason)
	}
}

func (m *Manager) expire(b *model.Bundle) {
	m.expired++
	if m.onExpire != nil {
		m.onExpire(b)
	}
}

func removeFrom(list []*model.Bundle, b *model.Bundle) []*model.Bundle {
	for i, c := range list {
		if c == b {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
