package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/logging"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

var (
	// ErrInvalidTimeRange indicates a prediction range with end <= start.
	ErrInvalidTimeRange = errors.New("invalid time range")
	// ErrInvalidStep indicates a non-positive sampling step.
	ErrInvalidStep = errors.New("sampling step must be positive")
)

const (
	// DefaultContactStep is the visibility sampling interval.
	DefaultContactStep = 60 * time.Second
	// DefaultMinElevationDeg is the ground-station elevation mask used when
	// a station does not configure one.
	DefaultMinElevationDeg = 10.0

	maxBisectionIterations = 10
)

// Endpoint is one side of a potential contact.
type Endpoint struct {
	ID              string
	Role            model.NodeRole
	Propagator      Propagator
	MinElevationDeg float64
}

// ContactPredictor samples node geometry at a fixed step and turns runs of
// visible samples into contact windows.
type ContactPredictor struct {
	// Step is the sampling interval.
	Step time.Duration
	// BisectionIterations refines each window boundary; capped at 10.
	BisectionIterations int
	// MaxISLRangeKm limits satellite–satellite contacts; 0 = unlimited.
	MaxISLRangeKm float64
	// GrazingAltitudeKm is the clearance an inter-satellite line of sight
	// keeps above the Earth's surface.
	GrazingAltitudeKm float64
	// Rate estimates each window's data rate.
	Rate RateModel

	log logging.Logger
}

// NewContactPredictor returns a predictor with default sampling and the
// given rate model (the default link budget when nil).
func NewContactPredictor(rate RateModel, log logging.Logger) *ContactPredictor {
	if rate == nil {
		rate = NewLinkBudget(DefaultTransceiver())
	}
	if log == nil {
		log = logging.Noop()
	}
	return &ContactPredictor{
		Step:                DefaultContactStep,
		BisectionIterations: maxBisectionIterations,
		GrazingAltitudeKm:   DefaultGrazingAltitudeKm,
		Rate:                rate,
		log:                 log,
	}
}

type sample struct {
	visible      bool
	elevationDeg float64
	rangeKm      float64
}

// sample evaluates visibility between a and b at t.
func (cp *ContactPredictor) sample(a, b Endpoint, t time.Time) sample {
	aGround := a.Role == model.RoleGroundStation
	bGround := b.Role == model.RoleGroundStation
	if aGround && bGround {
		return sample{}
	}

	fixedA := fixedPosition(a.Propagator, t)
	fixedB := fixedPosition(b.Propagator, t)

	if aGround || bGround {
		station, sat := a, fixedB
		stationFixed := fixedA
		if bGround {
			station, sat, stationFixed = b, fixedA, fixedB
		}
		mask := station.MinElevationDeg
		look := Topocentric(stationGeodetic(station.Propagator, stationFixed), stationFixed, sat)
		return sample{
			visible:      look.ElevationDeg >= mask,
			elevationDeg: look.ElevationDeg,
			rangeKm:      look.RangeKm,
		}
	}

	rng := fixedA.DistanceTo(fixedB)
	visible := LineOfSight(fixedA, fixedB, cp.GrazingAltitudeKm)
	if cp.MaxISLRangeKm > 0 && rng > cp.MaxISLRangeKm {
		visible = false
	}
	return sample{
		visible:      visible,
		elevationDeg: ElevationDegrees(fixedA, fixedB),
		rangeKm:      rng,
	}
}

func fixedPosition(p Propagator, t time.Time) Vec3 {
	if gs, ok := p.(*GroundStation); ok {
		return gs.Fixed()
	}
	pos, _ := p.PositionAt(t)
	return InertialToFixed(pos, t)
}

func stationGeodetic(p Propagator, fixed Vec3) Geodetic {
	if gs, ok := p.(*GroundStation); ok {
		return gs.Site
	}
	return FixedToGeodetic(fixed)
}

// Predict returns the contact windows between a and b inside [start, end],
// ordered by start time. A pair that is never visible yields an empty slice.
func (cp *ContactPredictor) Predict(a, b Endpoint, start, end time.Time) ([]model.ContactWindow, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("predict %s-%s: %w", a.ID, b.ID, ErrInvalidTimeRange)
	}
	if cp.Step <= 0 {
		return nil, fmt.Errorf("predict %s-%s: %w", a.ID, b.ID, ErrInvalidStep)
	}
	if a.Role == model.RoleGroundStation && b.Role == model.RoleGroundStation {
		return []model.ContactWindow{}, nil
	}

	windows := make([]model.ContactWindow, 0)
	var (
		open     bool
		current  model.ContactWindow
		peakEl   float64
		peakRng  float64
		prevT    time.Time
		prevSeen bool
	)

	closeWindow := func(at time.Time) {
		current.End = at
		if current.Start.Before(current.End) {
			current.PeakElevationDeg = peakEl
			current.RangeKm = peakRng
			current.DataRateBps = cp.rateFor(a, b, peakRng, peakEl)
			windows = append(windows, current)
		}
		open = false
	}

	for i := 0; ; i++ {
		t := start.Add(time.Duration(i) * cp.Step)
		if t.After(end) {
			t = end
		}
		s := cp.sample(a, b, t)

		switch {
		case s.visible && !open:
			open = true
			current = model.ContactWindow{A: a.ID, B: b.ID, Start: t, MinRangeKm: s.rangeKm}
			if i > 0 && !prevSeen {
				current.Start = cp.refine(a, b, prevT, t, true)
			}
			peakEl, peakRng = s.elevationDeg, s.rangeKm
		case s.visible && open:
			if s.elevationDeg > peakEl {
				peakEl, peakRng = s.elevationDeg, s.rangeKm
			}
		case !s.visible && open:
			closeWindow(cp.refine(a, b, prevT, t, false))
		}
		if open && s.visible && s.rangeKm < current.MinRangeKm {
			current.MinRangeKm = s.rangeKm
		}

		prevT, prevSeen = t, s.visible
		if !t.Before(end) {
			break
		}
	}
	if open {
		closeWindow(end)
	}

	cp.log.Debug(context.Background(), "predicted contact windows",
		logging.String("node_a", a.ID),
		logging.String("node_b", b.ID),
		logging.Int("windows", len(windows)),
	)
	return windows, nil
}

// refine bisects between two samples with different visibility. With
// rising=true lo is invisible and hi visible and the first visible instant
// is returned; otherwise lo is visible and the last visible instant is
// returned.
func (cp *ContactPredictor) refine(a, b Endpoint, lo, hi time.Time, rising bool) time.Time {
	iters := cp.BisectionIterations
	if iters > maxBisectionIterations {
		iters = maxBisectionIterations
	}
	for i := 0; i < iters; i++ {
		mid := lo.Add(hi.Sub(lo) / 2)
		if !mid.After(lo) || !mid.Before(hi) {
			break
		}
		visible := cp.sample(a, b, mid).visible
		if visible == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	if rising {
		return hi
	}
	return lo
}

func (cp *ContactPredictor) rateFor(a, b Endpoint, rangeKm, elevationDeg float64) float64 {
	if a.Role != model.RoleGroundStation && b.Role != model.RoleGroundStation {
		// No atmosphere on inter-satellite links.
		elevationDeg = 90
	}
	rate := cp.Rate.RateBps(rangeKm, elevationDeg)
	if rate < 0 {
		return 0
	}
	return rate
}

// PredictAll predicts windows for every unordered endpoint pair using up to
// workers goroutines. Each pair is computed independently from read-only
// propagators; results are merged and sorted by (Start, A, B).
func (cp *ContactPredictor) PredictAll(ctx context.Context, endpoints []Endpoint, start, end time.Time, workers int) ([]model.ContactWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type pair struct{ i, j int }
	pairs := make([]pair, 0, len(endpoints)*(len(endpoints)-1)/2)
	for i := range endpoints {
		for j := i + 1; j < len(endpoints); j++ {
			if endpoints[i].Role == model.RoleGroundStation && endpoints[j].Role == model.RoleGroundStation {
				continue
			}
			pairs = append(pairs, pair{i, j})
		}
	}
	if workers < 1 {
		workers = 1
	}

	results := make([][]model.ContactWindow, len(pairs))
	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				p := pairs[idx]
				windows, err := cp.Predict(endpoints[p.i], endpoints[p.j], start, end)
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				results[idx] = windows
			}
		}()
	}

feed:
	for idx := range pairs {
		select {
		case <-ctx.Done():
			errMu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			errMu.Unlock()
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	merged := make([]model.ContactWindow, 0)
	for _, windows := range results {
		merged = append(merged, windows...)
	}
	SortWindows(merged)
	return merged, nil
}

// SortWindows orders windows by start time, then endpoint IDs.
func SortWindows(windows []model.ContactWindow) {
	sort.SliceStable(windows, func(i, j int) bool {
		wi, wj := windows[i], windows[j]
		if !wi.Start.Equal(wj.Start) {
			return wi.Start.Before(wj.Start)
		}
		if wi.A != wj.A {
			return wi.A < wj.A
		}
		return wi.B < wj.B
	})
}
