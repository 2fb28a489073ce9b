// Package classify derives human-facing weather labels, descriptions and
// recommendations from a forecast prediction.
package classify

import (
	"errors"
	"strings"
)

// ErrUnknownPersona is returned when parsing an unrecognized persona.
var ErrUnknownPersona = errors.New("unknown persona")

// Sky is the primary weather category before modifiers.
type Sky string

// Primary weather categories.
const (
	SkyClear        Sky = "clear"
	SkyHot          Sky = "hot"
	SkyPartlyCloudy Sky = "partly_cloudy"
	SkyCloudy       Sky = "cloudy"
	SkyOvercast     Sky = "overcast"
	SkyLightRain    Sky = "light_rain"
	SkyRainy        Sky = "rainy"
	SkyHeavyRain    Sky = "heavy_rain"
	SkySnowy        Sky = "snowy"
)

// Condition is a classified weather condition.
type Condition struct {
	Sky   Sky
	Windy bool
}

// String returns the condition tag, e.g. "windy_rainy".
func (c Condition) String() string {
	if c.Windy {
		return "windy_" + string(c.Sky)
	}
	return string(c.Sky)
}

// IsRainy reports whether the condition involves rain.
func (c Condition) IsRainy() bool {
	return c.Sky == SkyLightRain || c.Sky == SkyRainy || c.Sky == SkyHeavyRain
}

// IsSnowy reports whether the condition involves snow.
func (c Condition) IsSnowy() bool {
	return c.Sky == SkySnowy
}

// IsSunny reports whether the sky is expected to be clear. A hot day is
// not counted as sunny.
func (c Condition) IsSunny() bool {
	return c.Sky == SkyClear
}

// MarshalText encodes the condition as its tag.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a condition tag produced by MarshalText.
func (c *Condition) UnmarshalText(text []byte) error {
	tag := string(text)
	sky, windy := strings.CutPrefix(tag, "windy_")
	c.Sky = Sky(sky)
	c.Windy = windy
	return nil
}

// TemperatureBand is a coarse temperature category.
type TemperatureBand string

// Temperature bands.
const (
	BandFreezing    TemperatureBand = "freezing"
	BandCold        TemperatureBand = "cold"
	BandCool        TemperatureBand = "cool"
	BandComfortable TemperatureBand = "comfortable"
	BandWarm        TemperatureBand = "warm"
	BandHot         TemperatureBand = "hot"
)

// Persona tailors descriptions to a user's weather preference.
type Persona string

// Supported personas.
const (
	PersonaSunLover       Persona = "sun_lover"
	PersonaRainEnjoyer    Persona = "rain_enjoyer"
	PersonaSnowEnthusiast Persona = "snow_enthusiast"
	PersonaBalanced       Persona = "balanced"
)

// Personas returns every supported persona.
func Personas() []Persona {
	return []Persona{PersonaSunLover, PersonaRainEnjoyer, PersonaSnowEnthusiast, PersonaBalanced}
}

// ParsePersona parses a persona name. Empty input is balanced.
func ParsePersona(s string) (Persona, error) {
	if s == "" {
		return PersonaBalanced, nil
	}
	p := Persona(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Personas() {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnknownPersona
}

// Report bundles everything derived from one prediction.
type Report struct {
	Condition       Condition       `json:"condition"`
	Summary         string          `json:"summary"`
	TemperatureBand TemperatureBand `json:"temperature_band"`
	Description     string          `json:"description"`
	Emoji           string          `json:"emoji"`
	Activities      []string        `json:"activities"`
	Clothing        []string        `json:"clothing"`
	Persona         Persona         `json:"persona"`
}
