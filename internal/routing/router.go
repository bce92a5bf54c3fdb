// Package routing decides which buffered bundles a node offers over an
// active contact. Each node owns one Router; all routing state is per node.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

var (
	// ErrUnknownAlgorithm indicates a routing algorithm name that is not
	// recognised.
	ErrUnknownAlgorithm = errors.New("unknown routing algorithm")
	// ErrInvalidParameter indicates a routing parameter outside its domain.
	ErrInvalidParameter = errors.New("invalid routing parameter")
)

// Algorithm names a routing scheme.
type Algorithm string

const (
	AlgorithmEpidemic     Algorithm = "epidemic"
	AlgorithmProphet      Algorithm = "prophet"
	AlgorithmSprayAndWait Algorithm = "spray-and-wait"
)

// ParseAlgorithm normalises a configuration string.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s))) {
	case "epidemic":
		return AlgorithmEpidemic, nil
	case "prophet":
		return AlgorithmProphet, nil
	case "spray-and-wait", "sprayandwait", "snw", "spray":
		return AlgorithmSprayAndWait, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownAlgorithm)
	}
}

// Defaults for PRoPHET and Spray-and-Wait.
const (
	DefaultPEncounter  = 0.75
	DefaultGamma       = 0.98
	DefaultBeta        = 0.25
	DefaultAgingUnit   = 30 * time.Second
	DefaultSprayCopies = 10
)

// ProphetParams tunes delivery-predictability updates.
type ProphetParams struct {
	PEncounter float64
	Gamma      float64
	Beta       float64
	// AgingUnit is the elapsed time that counts as one aging step k.
	AgingUnit time.Duration
}

// Config selects and parameterises the routing algorithm.
type Config struct {
	Algorithm Algorithm
	Prophet   ProphetParams
	// SprayCopies is L, the copy budget a new bundle starts with.
	SprayCopies int
}

// WithDefaults fills zero values with the documented defaults.
func (c Config) WithDefaults() Config {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmEpidemic
	}
	if c.Prophet.PEncounter == 0 {
		c.Prophet.PEncounter = DefaultPEncounter
	}
	if c.Prophet.Gamma == 0 {
		c.Prophet.Gamma = DefaultGamma
	}
	if c.Prophet.Beta == 0 {
		c.Prophet.Beta = DefaultBeta
	}
	if c.Prophet.AgingUnit == 0 {
		c.Prophet.AgingUnit = DefaultAgingUnit
	}
	if c.SprayCopies == 0 {
		c.SprayCopies = DefaultSprayCopies
	}
	return c
}

// Validate checks the algorithm name and the parameters it uses.
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmEpidemic:
		return nil
	case AlgorithmProphet:
		p := c.Prophet
		for name, v := range map[string]float64{"p_encounter": p.PEncounter, "gamma": p.Gamma, "beta": p.Beta} {
			if !(v > 0 && v <= 1) {
				return fmt.Errorf("prophet %s=%v not in (0,1]: %w", name, v, ErrInvalidParameter)
			}
		}
		if p.AgingUnit <= 0 {
			return fmt.Errorf("prophet aging unit %v: %w", p.AgingUnit, ErrInvalidParameter)
		}
		return nil
	case AlgorithmSprayAndWait:
		if c.SprayCopies < 1 {
			return fmt.Errorf("spray-and-wait L=%d: %w", c.SprayCopies, ErrInvalidParameter)
		}
		return nil
	default:
		return fmt.Errorf("%q: %w", c.Algorithm, ErrUnknownAlgorithm)
	}
}

// InitialCopies is the copy budget stamped on newly generated bundles.
func (c Config) InitialCopies() int {
	if c.Algorithm == AlgorithmSprayAndWait {
		return c.SprayCopies
	}
	return 1
}

// Summary is what a node advertises to a peer at the start of an exchange.
type Summary struct {
	NodeID string
	// Held lists the logical keys currently buffered.
	Held map[string]struct{}
	// Seen lists keys the node has already handled (Epidemic).
	Seen map[string]struct{}
	// Delivered lists keys known to have reached their destination.
	Delivered map[string]struct{}
	// Predictability is P(node, dest) per destination (PRoPHET).
	Predictability map[string]float64
}

// NewSummary returns an empty summary for node.
func NewSummary(node string) Summary {
	return Summary{
		NodeID:         node,
		Held:           make(map[string]struct{}),
		Seen:           make(map[string]struct{}),
		Delivered:      make(map[string]struct{}),
		Predictability: make(map[string]float64),
	}
}

// Knows reports whether the node already holds, has handled, or knows the
// delivery of key.
func (s Summary) Knows(key string) bool {
	if _, ok := s.Held[key]; ok {
		return true
	}
	if _, ok := s.Seen[key]; ok {
		return true
	}
	_, ok := s.Delivered[key]
	return ok
}

// Offer is a bundle proposed for transfer over a contact.
type Offer struct {
	Bundle *model.Bundle
	// Copies is the copy budget the receiving replica will carry.
	Copies int
	// Handoff removes the sender's replica once the transfer is confirmed.
	Handoff bool
}

// Router is implemented by Epidemic, Prophet and SprayAndWait.
type Router interface {
	Algorithm() Algorithm
	// Advertise adds algorithm state to the node's outgoing summary.
	Advertise(now time.Time, s *Summary)
	// Encounter updates routing state when a contact with peer begins.
	// Buffered bundles made redundant by the peer's summary are discarded
	// from buf and returned.
	Encounter(now time.Time, buf *buffer.Manager, peer Summary) []*model.Bundle
	// SelectForContact returns the bundles to offer the remote node, in
	// transmission order.
	SelectForContact(now time.Time, buf *buffer.Manager, contact model.ContactWindow, remote Summary) []Offer
	// Committed is called after the peer accepted offer.
	Committed(now time.Time, offer Offer, peer string)
}

// New constructs the router for nodeID.
func New(cfg Config, nodeID string) (Router, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case AlgorithmEpidemic:
		return NewEpidemic(nodeID), nil
	case AlgorithmProphet:
		return NewProphet(nodeID, cfg.Prophet), nil
	default:
		return NewSprayAndWait(nodeID), nil
	}
}

// sortOffers orders offers by priority (high first), then tie, then
// remaining TTL (least first), then bundle key and copy ID. tie returns a
// negative value when a should go before b.
func sortOffers(now time.Time, offers []Offer, tie func(a, b Offer) int) {
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if a.Bundle.Priority != b.Bundle.Priority {
			return a.Bundle.Priority > b.Bundle.Priority
		}
		if tie != nil {
			if c := tie(a, b); c != 0 {
				return c < 0
			}
		}
		if ra, rb := a.Bundle.RemainingTTL(now), b.Bundle.RemainingTTL(now); ra != rb {
			return ra < rb
		}
		if ka, kb := a.Bundle.Key(), b.Bundle.Key(); ka != kb {
			return ka < kb
		}
		return a.Bundle.CopyID < b.Bundle.CopyID
	})
}

func live(now time.Time) func(*model.Bundle) bool {
	return func(b *model.Bundle) bool { return !b.IsExpired(now) }
}
