package model

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInvalidTTL indicates a bundle was created with a non-positive TTL.
	ErrInvalidTTL = errors.New("bundle TTL must be positive")
	// ErrInvalidBundle indicates a bundle is missing its source or destination.
	ErrInvalidBundle = errors.New("invalid bundle")
)

// Priority orders bundles for transmission and eviction.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority maps a config string onto a Priority. Empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low", "LOW":
		return PriorityLow, nil
	case "", "normal", "NORMAL":
		return PriorityNormal, nil
	case "high", "HIGH":
		return PriorityHigh, nil
	case "critical", "CRITICAL":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// BundleID identifies a logical bundle. All replicas of one bundle share it.
type BundleID struct {
	Source    string
	CreatedAt time.Time
	Seq       uint64
}

func (id BundleID) String() string {
	return fmt.Sprintf("%s/%d/%d", id.Source, id.CreatedAt.UnixNano(), id.Seq)
}

// Bundle is a DTN message unit. Fields other than Copies, Custody, HopCount
// and ReceivedAt are fixed at creation; the payload is shared between
// replicas and must never be mutated.
type Bundle struct {
	ID BundleID
	// CopyID distinguishes replicas of the same logical bundle. It is unique
	// within a run.
	CopyID uint64

	Source      string
	Destination string
	Payload     []byte
	Priority    Priority
	CreatedAt   time.Time
	TTL         time.Duration

	// Copies is the Spray-and-Wait copy budget carried by this replica.
	Copies int
	// Custody marks the replica whose holder is responsible for delivery.
	Custody bool

	HopCount   int
	ReceivedAt time.Time
}

// Key returns the logical identity as a map key.
func (b *Bundle) Key() string {
	return b.ID.String()
}

// Size returns the bundle size in bytes.
func (b *Bundle) Size() int64 {
	return int64(len(b.Payload))
}

// IsExpired reports whether the bundle's lifetime has lapsed at t. Once true
// it stays true for every later t.
func (b *Bundle) IsExpired(t time.Time) bool {
	return t.Sub(b.CreatedAt) > b.TTL
}

// RemainingTTL returns the lifetime left at t, never negative.
func (b *Bundle) RemainingTTL(t time.Time) time.Duration {
	left := b.TTL - t.Sub(b.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Replicate returns a new replica carrying copies and a fresh copy ID. The
// replica shares the payload and the logical lifetime of b.
func (b *Bundle) Replicate(copyID uint64, copies int, at time.Time) *Bundle {
	cp := *b
	cp.CopyID = copyID
	cp.Copies = copies
	cp.Custody = false
	cp.HopCount = b.HopCount + 1
	cp.ReceivedAt = at
	return &cp
}

// BundleFactory mints bundles with per-source monotonic sequence numbers and
// run-unique copy IDs.
type BundleFactory struct {
	mu      sync.Mutex
	seq     map[string]uint64
	copySeq uint64
}

// NewBundleFactory constructs an empty factory.
func NewBundleFactory() *BundleFactory {
	return &BundleFactory{seq: make(map[string]uint64)}
}

// NextCopyID returns a fresh replica identifier.
func (f *BundleFactory) NextCopyID() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copySeq++
	return f.copySeq
}

// NewBundle creates the first replica of a new logical bundle.
func (f *BundleFactory) NewBundle(src, dst string, payload []byte, prio Priority, createdAt time.Time, ttl time.Duration, copies int) (*Bundle, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("bundle %s->%s: %w", src, dst, ErrInvalidTTL)
	}
	if src == "" || dst == "" {
		return nil, fmt.Errorf("bundle needs source and destination: %w", ErrInvalidBundle)
	}
	if src == dst {
		return nil, fmt.Errorf("bundle source equals destination %q: %w", src, ErrInvalidBundle)
	}
	if copies < 1 {
		copies = 1
	}

	f.mu.Lock()
	f.seq[src]++
	seq := f.seq[src]
	f.copySeq++
	copyID := f.copySeq
	f.mu.Unlock()

	return &Bundle{
		ID:          BundleID{Source: src, CreatedAt: createdAt, Seq: seq},
		CopyID:      copyID,
		Source:      src,
		Destination: dst,
		Payload:     payload,
		Priority:    prio,
		CreatedAt:   createdAt,
		TTL:         ttl,
		Copies:      copies,
		ReceivedAt:  createdAt,
	}, nil
}
