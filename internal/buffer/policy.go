package buffer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// ErrUnknownPolicy indicates an eviction policy name that is not recognised.
var ErrUnknownPolicy = errors.New("unknown eviction policy")

// Policy chooses which resident bundle to discard when the buffer is full.
type Policy int

const (
	OldestFirst Policy = iota
	LargestFirst
	ShortestTTL
	Random
	PriorityAware
)

func (p Policy) String() string {
	switch p {
	case OldestFirst:
		return "oldest-first"
	case LargestFirst:
		return "largest-first"
	case ShortestTTL:
		return "shortest-ttl"
	case Random:
		return "random"
	case PriorityAware:
		return "priority-aware"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration string onto a Policy. Matching ignores
// case, dashes and underscores; empty selects OldestFirst.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch norm {
	case "", "oldestfirst", "oldest", "fifo":
		return OldestFirst, nil
	case "largestfirst", "largest":
		return LargestFirst, nil
	case "shortestttl", "ttl":
		return ShortestTTL, nil
	case "random":
		return Random, nil
	case "priorityaware", "priority":
		return PriorityAware, nil
	default:
		return OldestFirst, fmt.Errorf("%q: %w", s, ErrUnknownPolicy)
	}
}

// evictsBefore reports whether x should be evicted before y under p. Every
// policy ends on the bundle key and copy ID so the order is total.
func (p Policy) evictsBefore(x, y *model.Bundle, now time.Time) bool {
	switch p {
	case LargestFirst:
		if x.Size() != y.Size() {
			return x.Size() > y.Size()
		}
	case ShortestTTL:
		if rx, ry := x.RemainingTTL(now), y.RemainingTTL(now); rx != ry {
			return rx < ry
		}
	case PriorityAware:
		if x.Priority != y.Priority {
			return x.Priority < y.Priority
		}
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.Before(y.CreatedAt)
		}
	default:
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.Before(y.CreatedAt)
		}
	}
	if x.Priority != y.Priority {
		return x.Priority < y.Priority
	}
	if !x.CreatedAt.Equal(y.CreatedAt) {
		return x.CreatedAt.Before(y.CreatedAt)
	}
	if kx, ky := x.Key(), y.Key(); kx != ky {
		return kx < ky
	}
	return x.CopyID < y.CopyID
}
