package core

import "math"

// FrequencyBand represents a simple [min,max] GHz band.
type FrequencyBand struct {
	MinGHz float64 `json:"MinGHz" yaml:"min_ghz"`
	MaxGHz float64 `json:"MaxGHz" yaml:"max_ghz"`
}

// RateModel estimates the achievable data rate of a contact from its
// geometry. Implementations must be non-increasing in range.
type RateModel interface {
	RateBps(rangeKm, elevationDeg float64) float64
}

// ConstantRate ignores geometry and always returns the same rate.
type ConstantRate float64

// RateBps implements RateModel.
func (c ConstantRate) RateBps(float64, float64) float64 { return float64(c) }

// TransceiverModel describes the RF characteristics used by the link-budget
// rate estimate. Zero fields fall back to the defaults below.
type TransceiverModel struct {
	ID   string        `json:"ID" yaml:"id"`
	Band FrequencyBand `json:"Band" yaml:"band"`

	TxPowerDBw float64 `json:"TxPowerDBw,omitempty" yaml:"tx_power_dbw"`
	GainTxDBi  float64 `json:"GainTxDBi,omitempty" yaml:"gain_tx_dbi"`
	GainRxDBi  float64 `json:"GainRxDBi,omitempty" yaml:"gain_rx_dbi"`

	// SystemNoiseFigureDB raises the thermal noise floor. nil = 2 dB.
	SystemNoiseFigureDB *float64 `json:"SystemNoiseFigureDB,omitempty" yaml:"noise_figure_db"`

	BandwidthMHz float64 `json:"BandwidthMHz,omitempty" yaml:"bandwidth_mhz"`
	// MaxRateBps caps the Shannon estimate; 0 = 1 Gbit/s.
	MaxRateBps float64 `json:"MaxRateBps,omitempty" yaml:"max_rate_bps"`
	// MinSNRdB is the demodulation threshold below which the rate is zero.
	MinSNRdB float64 `json:"MinSNRdB,omitempty" yaml:"min_snr_db"`
	// ZenithAtmosLossDB is the atmospheric loss looking straight up; it
	// grows with 1/sin(elevation) toward the horizon.
	ZenithAtmosLossDB float64 `json:"ZenithAtmosLossDB,omitempty" yaml:"zenith_atmos_loss_db"`
}

// DefaultTransceiver is an X-band terminal typical of small satellites.
func DefaultTransceiver() TransceiverModel {
	return TransceiverModel{
		ID:                "default-x-band",
		Band:              FrequencyBand{MinGHz: 8.0, MaxGHz: 8.4},
		TxPowerDBw:        10,
		GainTxDBi:         30,
		GainRxDBi:         35,
		BandwidthMHz:      20,
		MaxRateBps:        1e9,
		MinSNRdB:          -5,
		ZenithAtmosLossDB: 0.5,
	}
}

// IsCompatible returns true if the frequency bands overlap at all.
func (tm *TransceiverModel) IsCompatible(other *TransceiverModel) bool {
	return !(tm.Band.MaxGHz < other.Band.MinGHz || tm.Band.MinGHz > other.Band.MaxGHz)
}

// LinkBudget turns a TransceiverModel into a RateModel: free-space path loss
// plus elevation-dependent atmospheric loss gives an SNR, and the Shannon
// capacity of the channel bandwidth gives the rate.
type LinkBudget struct {
	Tx TransceiverModel
	Rx TransceiverModel
}

// NewLinkBudget uses the same terminal at both ends.
func NewLinkBudget(trx TransceiverModel) LinkBudget {
	return LinkBudget{Tx: trx, Rx: trx}
}

// SNRdB estimates the received SNR for the given geometry.
func (lb LinkBudget) SNRdB(rangeKm, elevationDeg float64) float64 {
	if rangeKm < 1 {
		rangeKm = 1
	}
	fGHz := (lb.Tx.Band.MinGHz + lb.Tx.Band.MaxGHz) / 2
	if fGHz <= 0 {
		fGHz = 8.2
	}

	// Free-space path loss in dB: 92.45 + 20 log10(d_km) + 20 log10(f_GHz)
	fspl := 92.45 + 20*math.Log10(rangeKm) + 20*math.Log10(fGHz)

	el := elevationDeg
	if el < 5 {
		el = 5
	}
	if el > 90 {
		el = 90
	}
	atmos := lb.Tx.ZenithAtmosLossDB / math.Sin(degToRad(el))

	pr := lb.Tx.TxPowerDBw + lb.Tx.GainTxDBi + lb.Rx.GainRxDBi - fspl - atmos

	// Thermal noise kTB at 290 K plus the receiver noise figure.
	nf := 2.0
	if lb.Rx.SystemNoiseFigureDB != nil {
		nf = *lb.Rx.SystemNoiseFigureDB
	}
	noise := -228.6 + 10*math.Log10(290) + 10*math.Log10(lb.bandwidthHz()) + nf
	return pr - noise
}

// RateBps implements RateModel.
func (lb LinkBudget) RateBps(rangeKm, elevationDeg float64) float64 {
	snr := lb.SNRdB(rangeKm, elevationDeg)
	if snr < lb.Rx.MinSNRdB {
		return 0
	}
	rate := lb.bandwidthHz() * math.Log2(1+math.Pow(10, snr/10))
	ceiling := lb.Tx.MaxRateBps
	if ceiling <= 0 {
		ceiling = 1e9
	}
	return math.Min(rate, ceiling)
}

func (lb LinkBudget) bandwidthHz() float64 {
	if lb.Tx.BandwidthMHz <= 0 {
		return 20e6
	}
	return lb.Tx.BandwidthMHz * 1e6
}
