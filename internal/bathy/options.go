package bathy

import "math"

// Default engine parameters.
const (
	DefaultInterval       = 1.0
	DefaultGridResolution = 100
	DefaultPower          = 2.0
)

// Limits bounds the caller-supplied interval and grid resolution.
type Limits struct {
	MinInterval       float64 `json:"min_interval"`
	MaxInterval       float64 `json:"max_interval"`
	MinGridResolution int     `json:"min_grid_resolution"`
	MaxGridResolution int     `json:"max_grid_resolution"`
}

// DefaultLimits returns the stock clamps: interval [0.1, 10], grid [50, 300].
func DefaultLimits() Limits {
	return Limits{
		MinInterval:       0.1,
		MaxInterval:       10,
		MinGridResolution: 50,
		MaxGridResolution: 300,
	}
}

// Options configures one Generate run.
type Options struct {
	// Interval is the depth step between contour levels.
	Interval float64 `json:"interval"`
	// GridResolution is used for both grid width and height.
	GridResolution int `json:"grid_resolution"`
	// Power is the IDW distance exponent.
	Power float64 `json:"power"`
	// GeographicBounds drops polylines with any vertex outside
	// |x| <= 180, |y| <= 90.
	GeographicBounds bool `json:"geographic_bounds"`
	// Levels, when non-empty, replaces level selection.
	Levels []float64 `json:"levels,omitempty"`

	Limits Limits `json:"limits"`
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Interval:         DefaultInterval,
		GridResolution:   DefaultGridResolution,
		Power:            DefaultPower,
		GeographicBounds: true,
		Limits:           DefaultLimits(),
	}
}

// Normalize fills unset or non-finite fields with defaults and clamps
// Interval and GridResolution into Limits.
func (o Options) Normalize() Options {
	lim := o.Limits
	def := DefaultLimits()
	if !(lim.MinInterval > 0) || !isFinite(lim.MinInterval) {
		lim.MinInterval = def.MinInterval
	}
	if !(lim.MaxInterval >= lim.MinInterval) || !isFinite(lim.MaxInterval) {
		lim.MaxInterval = math.Max(def.MaxInterval, lim.MinInterval)
	}
	if lim.MinGridResolution < 2 {
		lim.MinGridResolution = def.MinGridResolution
	}
	if lim.MaxGridResolution < lim.MinGridResolution {
		lim.MaxGridResolution = max(def.MaxGridResolution, lim.MinGridResolution)
	}
	o.Limits = lim

	if !(o.Interval > 0) || !isFinite(o.Interval) {
		o.Interval = DefaultInterval
	}
	o.Interval = math.Max(lim.MinInterval, math.Min(lim.MaxInterval, o.Interval))

	if o.GridResolution <= 0 {
		o.GridResolution = DefaultGridResolution
	}
	o.GridResolution = max(lim.MinGridResolution, min(lim.MaxGridResolution, o.GridResolution))

	if !(o.Power > 0) || !isFinite(o.Power) {
		o.Power = DefaultPower
	}
	return o
}
