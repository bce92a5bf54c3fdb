// Package arq models bundle transmission over a time-bounded contact:
// all-or-nothing transfers, simulated loss and bounded retransmission.
package arq

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// ErrInvalidConfig indicates a loss probability or retransmission budget out
// of range.
var ErrInvalidConfig = errors.New("invalid arq config")

// DefaultMaxRetransmissions is the retransmission budget per transfer.
const DefaultMaxRetransmissions = 1

// Config controls loss simulation.
type Config struct {
	// LossProbability is the chance each attempt is lost, in [0,1].
	LossProbability float64
	// MaxRetransmissions bounds retries after a loss. Zero selects the
	// default; negative disables retransmission.
	MaxRetransmissions int
}

// Validate checks the config ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.LossProbability) || c.LossProbability < 0 || c.LossProbability > 1 {
		return fmt.Errorf("loss probability %v not in [0,1]: %w", c.LossProbability, ErrInvalidConfig)
	}
	return nil
}

func (c Config) retransmissions() int {
	switch {
	case c.MaxRetransmissions == 0:
		return DefaultMaxRetransmissions
	case c.MaxRetransmissions < 0:
		return 0
	}
	return c.MaxRetransmissions
}

// Reason explains a failed transfer.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInsufficientWindow Reason = "insufficient-window"
	ReasonLost               Reason = "lost"
	ReasonZeroRate           Reason = "zero-rate"
	ReasonWindowClosed       Reason = "window-closed"
	ReasonExpiresInTransit   Reason = "expires-in-transit"
)

// Result describes one transfer.
type Result struct {
	Delivered bool
	// Attempts is the number of transmissions made; zero when the transfer
	// was not attempted.
	Attempts int
	Start    time.Time
	End      time.Time
	Reason   Reason
}

// Retransmissions returns the number of attempts after the first.
func (r Result) Retransmissions() int {
	if r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// Session tracks link occupancy for one direction of a contact window.
type Session struct {
	Contact model.ContactWindow
	From    string
	To      string

	cursor time.Time
}

// NewSession opens a session from -> to over contact.
func NewSession(contact model.ContactWindow, from, to string) *Session {
	return &Session{Contact: contact, From: from, To: to, cursor: contact.Start}
}

// Cursor returns the instant the link becomes free.
func (s *Session) Cursor() time.Time { return s.cursor }

// Busy reports whether the link is occupied through horizon.
func (s *Session) Busy(horizon time.Time) bool {
	return !s.cursor.Before(horizon)
}

// Link performs transfers. It is driven by a single goroutine.
type Link struct {
	cfg Config
	rng *rand.Rand
}

// New constructs a Link with a seeded loss generator.
func New(cfg Config, seed uint64) (*Link, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Link{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)),
	}, nil
}

// TransmissionTime returns size*8/rate.
func TransmissionTime(size int64, rateBps float64) time.Duration {
	if rateBps <= 0 {
		return time.Duration(math.MaxInt64)
	}
	secs := float64(size) * 8 / rateBps
	if secs*float64(time.Second) >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Ceil(secs * float64(time.Second)))
}

// Transfer sends b over the session starting no earlier than now. A bundle
// that cannot finish before the window ends, or before its own lifetime
// ends, is not attempted. A lost attempt is retransmitted while the budget,
// the window and the lifetime allow.
func (l *Link) Transfer(s *Session, now time.Time, b *model.Bundle) Result {
	start := s.cursor
	if now.After(start) {
		start = now
	}
	if start.Before(s.Contact.Start) {
		start = s.Contact.Start
	}
	res := Result{Start: start, End: start}

	if !start.Before(s.Contact.End) {
		res.Reason = ReasonWindowClosed
		return res
	}
	if s.Contact.DataRateBps <= 0 {
		res.Reason = ReasonZeroRate
		return res
	}
	tx := TransmissionTime(b.Size(), s.Contact.DataRateBps)
	if tx > s.Contact.End.Sub(start) {
		res.Reason = ReasonInsufficientWindow
		return res
	}
	deadline := s.Contact.End
	if expiry := b.CreatedAt.Add(b.TTL); expiry.Before(deadline) {
		deadline = expiry
	}
	if tx > deadline.Sub(start) {
		res.Reason = ReasonExpiresInTransit
		return res
	}

	at := start
	for attempt := 0; attempt <= l.cfg.retransmissions(); attempt++ {
		end := at.Add(tx)
		if end.After(deadline) {
			break
		}
		res.Attempts++
		res.End = end
		s.cursor = end
		if !l.lost() {
			res.Delivered = true
			return res
		}
		at = end
	}
	res.Reason = ReasonLost
	return res
}

func (l *Link) lost() bool {
	p := l.cfg.LossProbability
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return l.rng.Float64() < p
}
