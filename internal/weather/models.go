package weather

import (
	"errors"
	"math"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrInvalidRange        = errors.New("invalid time range")
)

// Variable identifies one of the physical quantities tracked per observation.
// The ordering is fixed and determines the layout of state vectors.
type Variable int

const (
	Precipitation Variable = iota
	Temperature
	Humidity
	CloudCover
	WindSpeed
	SolarRadiation
	DewPoint
)

// NumVariables is the number of tracked variables.
const NumVariables = 7

// AllVariables returns every variable in canonical order.
func AllVariables() []Variable {
	return []Variable{Precipitation, Temperature, Humidity, CloudCover, WindSpeed, SolarRadiation, DewPoint}
}

type variableInfo struct {
	name      string
	unit      string
	parameter string
	lower     float64
	upper     float64
}

var variables = [NumVariables]variableInfo{
	Precipitation:  {name: "precipitation", unit: "mm", parameter: "PRECTOTCORR", lower: 0, upper: math.Inf(1)},
	Temperature:    {name: "temperature", unit: "°C", parameter: "T2M", lower: -80, upper: 60},
	Humidity:       {name: "humidity", unit: "%", parameter: "RH2M", lower: 0, upper: 100},
	CloudCover:     {name: "cloud_cover", unit: "%", parameter: "CLOUD_AMT", lower: 0, upper: 100},
	WindSpeed:      {name: "wind_speed", unit: "m/s", parameter: "WS10M", lower: 0, upper: math.Inf(1)},
	SolarRadiation: {name: "solar_radiation", unit: "W/m²", parameter: "ALLSKY_SFC_SW_DWN", lower: 0, upper: math.Inf(1)},
	DewPoint:       {name: "dew_point", unit: "°C", parameter: "T2MDEW", lower: -80, upper: 60},
}

// Valid reports whether v is a known variable.
func (v Variable) Valid() bool {
	return v >= 0 && int(v) < NumVariables
}

// String returns the snake_case name used in JSON payloads.
func (v Variable) String() string {
	if !v.Valid() {
		return "unknown"
	}
	return variables[v].name
}

// Unit returns the physical unit label.
func (v Variable) Unit() string {
	if !v.Valid() {
		return ""
	}
	return variables[v].unit
}

// Parameter returns the NASA POWER parameter code for the variable.
func (v Variable) Parameter() string {
	if !v.Valid() {
		return ""
	}
	return variables[v].parameter
}

// Bounds returns the physically valid range for the variable.
// Unbounded sides are reported as ±Inf.
func (v Variable) Bounds() (lower, upper float64) {
	if !v.Valid() {
		return math.Inf(-1), math.Inf(1)
	}
	return variables[v].lower, variables[v].upper
}

// Clip truncates x into the variable's physical range.
func (v Variable) Clip(x float64) float64 {
	lo, hi := v.Bounds()
	return math.Min(math.Max(x, lo), hi)
}

// VariableFromParameter maps a NASA POWER parameter code back to a Variable.
func VariableFromParameter(code string) (Variable, bool) {
	for i, info := range variables {
		if info.parameter == code {
			return Variable(i), true
		}
	}
	return 0, false
}

// Values holds one reading per variable. Missing readings are NaN.
type Values struct {
	Precipitation  float64 `json:"precipitation"`   // mm
	Temperature    float64 `json:"temperature"`     // °C at 2m
	Humidity       float64 `json:"humidity"`        // % relative humidity at 2m
	CloudCover     float64 `json:"cloud_cover"`     // % cloud amount
	WindSpeed      float64 `json:"wind_speed"`      // m/s at 10m
	SolarRadiation float64 `json:"solar_radiation"` // W/m² all-sky surface shortwave
	DewPoint       float64 `json:"dew_point"`       // °C at 2m
}

// MissingValues returns a Values with every field set to NaN.
func MissingValues() Values {
	nan := math.NaN()
	return Values{nan, nan, nan, nan, nan, nan, nan}
}

// Get returns the value for the given variable.
func (v Values) Get(variable Variable) float64 {
	switch variable {
	case Precipitation:
		return v.Precipitation
	case Temperature:
		return v.Temperature
	case Humidity:
		return v.Humidity
	case CloudCover:
		return v.CloudCover
	case WindSpeed:
		return v.WindSpeed
	case SolarRadiation:
		return v.SolarRadiation
	case DewPoint:
		return v.DewPoint
	default:
		return math.NaN()
	}
}

// Set assigns the value for the given variable.
func (v *Values) Set(variable Variable, x float64) {
	switch variable {
	case Precipitation:
		v.Precipitation = x
	case Temperature:
		v.Temperature = x
	case Humidity:
		v.Humidity = x
	case CloudCover:
		v.CloudCover = x
	case WindSpeed:
		v.WindSpeed = x
	case SolarRadiation:
		v.SolarRadiation = x
	case DewPoint:
		v.DewPoint = x
	}
}

// Slice returns the values in canonical variable order.
func (v Values) Slice() []float64 {
	out := make([]float64, NumVariables)
	for i := range out {
		out[i] = v.Get(Variable(i))
	}
	return out
}

// ValuesFromSlice builds Values from a canonical-order slice.
// Missing trailing entries are NaN.
func ValuesFromSlice(xs []float64) Values {
	v := MissingValues()
	for i := 0; i < NumVariables && i < len(xs); i++ {
		v.Set(Variable(i), xs[i])
	}
	return v
}

// Location is a geographic point.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Observation is a single hourly record at a location. Immutable once fetched.
type Observation struct {
	Time   time.Time
	Values Values
}

// HourlySeries is a time-ordered run of hourly observations for one location.
type HourlySeries struct {
	Location     Location
	Start        time.Time
	End          time.Time
	Observations []Observation

	// Source names the provider that produced the series.
	Source    string
	FetchedAt time.Time
}

// Len returns the number of observations.
func (s *HourlySeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Observations)
}

// ValidateCoordinates checks if coordinates are valid.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
