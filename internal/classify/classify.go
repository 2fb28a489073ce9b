package classify

import (
	"fmt"
	"strings"

	"github.com/histocast/histocast/internal/forecast"
)

// Classify determines the weather condition and a short summary from the
// ensemble means. Rules are ordered; the first match wins.
func Classify(p *forecast.Prediction) (Condition, string) {
	temp := p.Stats.Temperature.Mean
	precip := p.Stats.Precipitation.Mean
	prob := p.PrecipitationProbability
	clouds := p.Stats.CloudCover.Mean
	wind := p.Stats.WindSpeed.Mean
	humidity := p.Stats.Humidity.Mean

	var c Condition
	var summary string

	switch {
	case precip > 5 && prob > 0.5:
		switch {
		case temp < 0:
			c.Sky, summary = SkySnowy, "Expect snowfall"
		case precip > 20:
			c.Sky, summary = SkyHeavyRain, "Heavy rainfall expected"
		default:
			c.Sky, summary = SkyRainy, "Rainy conditions"
		}
	case precip > 0.5 && prob > 0.3:
		c.Sky, summary = SkyLightRain, "Light rain possible"
	case clouds > 80:
		c.Sky, summary = SkyOvercast, "Overcast skies"
	case clouds > 50:
		c.Sky, summary = SkyCloudy, "Mostly cloudy"
	case clouds > 20:
		c.Sky, summary = SkyPartlyCloudy, "Partly cloudy"
	case temp > 30:
		c.Sky, summary = SkyHot, "Hot and sunny"
	default:
		c.Sky, summary = SkyClear, "Clear skies"
	}

	if wind > 15 {
		c.Windy = true
		summary = "Windy with " + strings.ToLower(summary)
	}

	switch {
	case humidity > 85 && temp > 25:
		summary += " and humid"
	case humidity < 30:
		summary += " and dry"
	}

	return c, summary
}

// Band returns the temperature band for a mean temperature in °C.
func Band(temp float64) TemperatureBand {
	switch {
	case temp < 0:
		return BandFreezing
	case temp < 10:
		return BandCold
	case temp < 20:
		return BandCool
	case temp < 28:
		return BandComfortable
	case temp < 35:
		return BandWarm
	default:
		return BandHot
	}
}

// Describe builds a multi-sentence description tailored to the persona.
func Describe(p *forecast.Prediction, c Condition, persona Persona) string {
	temp := p.Stats.Temperature.Mean
	tempMin := p.Stats.Temperature.P5
	tempMax := p.Stats.Temperature.P95
	precip := p.Stats.Precipitation.Mean
	prob := p.PrecipitationProbability
	clouds := p.Stats.CloudCover.Mean
	wind := p.Stats.WindSpeed.Mean
	humidity := p.Stats.Humidity.Mean

	var parts []string
	add := func(s string) { parts = append(parts, s) }

	switch {
	case c.IsRainy():
		if persona == PersonaRainEnjoyer {
			add("Perfect! Rain is on the way.")
		} else {
			add("Rain is expected today.")
		}
	case c.IsSnowy():
		if persona == PersonaSnowEnthusiast {
			add("Exciting news - snowfall ahead!")
		} else {
			add("Snowy conditions expected.")
		}
	case c.IsSunny():
		if persona == PersonaSunLover {
			add("Great news! Sunny skies ahead!")
		} else {
			add("Clear skies are expected.")
		}
	default:
		add("Mixed weather conditions today.")
	}

	tempDesc := fmt.Sprintf("Temperatures will be around %.1f°C", temp)
	if tempMax-tempMin > 5 {
		tempDesc += fmt.Sprintf(", with variations between %.1f°C and %.1f°C", tempMin, tempMax)
	}
	add(tempDesc + ".")

	switch {
	case temp < 10:
		add("Dress warmly - it'll be quite chilly.")
	case temp > 30:
		add("Stay hydrated and seek shade - it'll be quite hot.")
	case temp >= 20 && temp <= 25:
		add("Very comfortable temperatures - perfect for any outdoor activities.")
	}

	switch {
	case precip > 0.5:
		rain := fmt.Sprintf("Expect about %.1fmm of precipitation", precip)
		if prob > 0.7 {
			rain += fmt.Sprintf(" (probability: %.0f%%)", prob*100)
		}
		rain += ". "
		switch {
		case precip < 2:
			rain += "Just a light drizzle, really."
		case precip < 10:
			rain += "Moderate rainfall - an umbrella would be wise."
		default:
			rain += "Heavy rain expected - plan accordingly."
		}
		add(rain)
	case prob > 0.3:
		add(fmt.Sprintf("There's a %.0f%% chance of some rain.", prob*100))
	}

	switch {
	case clouds < 20:
		add("Mostly clear skies throughout the day.")
	case clouds < 50:
		add("Some clouds, but plenty of sunshine too.")
	case clouds < 80:
		add("Mostly cloudy conditions expected.")
	default:
		add("Overcast skies with little sunshine.")
	}

	switch {
	case wind > 20:
		add(fmt.Sprintf("Strong winds at %.1f m/s - secure loose objects.", wind))
	case wind > 10:
		add(fmt.Sprintf("Moderate winds at %.1f m/s - a bit breezy.", wind))
	case wind < 3:
		add("Very calm conditions with minimal wind.")
	}

	switch {
	case humidity > 80:
		add("High humidity will make it feel muggy.")
	case humidity < 30:
		add("Low humidity - quite dry conditions.")
	}

	switch persona {
	case PersonaSunLover:
		if c.IsSunny() {
			add("Perfect day for soaking up some sunshine! ☀️")
		} else if c.IsRainy() {
			add("Not your favorite weather, but indoor activities can be fun too.")
		}
	case PersonaRainEnjoyer:
		if c.IsRainy() {
			add("Ideal weather for a cozy day with the sound of rain! 🌧️")
		} else if c.IsSunny() {
			add("Bright and dry - maybe find some indoor activities.")
		}
	case PersonaSnowEnthusiast:
		if c.IsSnowy() {
			add("Perfect for winter activities! ⛷️")
		} else if temp > 25 {
			add("Quite warm - not your preferred weather, but still enjoyable.")
		}
	default:
		if precip < 1 && temp >= 18 && temp <= 28 {
			add("Great weather for any outdoor plans you might have.")
		} else if c.IsRainy() {
			add("Indoor activities recommended, or embrace the rain with proper gear.")
		}
	}

	if wind > 15 || precip > 10 {
		add("Stay safe and plan your activities accordingly.")
	}

	return strings.Join(parts, " ")
}

var skyEmoji = map[Sky]string{
	SkyClear:        "☀️",
	SkyHot:          "🔥",
	SkyPartlyCloudy: "⛅",
	SkyCloudy:       "☁️",
	SkyOvercast:     "☁️",
	SkyLightRain:    "🌦️",
	SkyRainy:        "🌧️",
	SkyHeavyRain:    "🌧️",
	SkySnowy:        "❄️",
}

// Emoji returns an emoji for the condition. The windy modifier outranks
// the hot sky but no other.
func Emoji(c Condition) string {
	if c.Windy && c.Sky == SkyHot {
		return "💨"
	}
	if e, ok := skyEmoji[c.Sky]; ok {
		return e
	}
	if c.Windy {
		return "💨"
	}
	return "🌤️"
}

// Activities suggests activities suited to the prediction.
func Activities(p *forecast.Prediction, c Condition) []string {
	temp := p.Stats.Temperature.Mean
	precip := p.Stats.Precipitation.Mean
	wind := p.Stats.WindSpeed.Mean

	switch {
	case precip < 1 && temp >= 18 && temp <= 28 && wind < 10:
		return []string{
			"🚶 Perfect for a walk or jog",
			"🚴 Great cycling weather",
			"🧺 Ideal for a picnic",
		}
	case precip < 1 && temp > 28:
		return []string{
			"🏊 Swimming or water activities",
			"🌳 Seek shade for outdoor activities",
			"🍦 Great weather for ice cream!",
		}
	case precip < 1 && temp < 15:
		return []string{
			"🥾 Hiking with warm clothing",
			"☕ Outdoor coffee with a jacket",
			"📸 Photography in crisp air",
		}
	case c.IsRainy():
		return []string{
			"📚 Perfect reading weather",
			"🎬 Movie marathon day",
			"🍲 Cook your favorite comfort food",
			"☂️ Puddle jumping for the adventurous!",
		}
	case c.IsSnowy():
		return []string{
			"⛷️ Skiing or snowboarding",
			"⛸️ Ice skating",
			"☃️ Build a snowman",
			"🔥 Cozy up by the fireplace",
		}
	case c.Windy:
		return []string{
			"🪁 Kite flying",
			"🏠 Indoor activities recommended",
			"🌳 Avoid tall trees and structures",
		}
	default:
		return []string{"🏠 Indoor activities recommended"}
	}
}

// Clothing recommends what to wear.
func Clothing(p *forecast.Prediction, c Condition) []string {
	temp := p.Stats.Temperature.Mean
	precip := p.Stats.Precipitation.Mean
	wind := p.Stats.WindSpeed.Mean

	var recs []string
	switch {
	case temp < 10:
		recs = append(recs, "🧥 Heavy jacket or coat", "🧣 Scarf and gloves")
	case temp < 18:
		recs = append(recs, "🧥 Light jacket or sweater")
	case temp < 28:
		recs = append(recs, "👕 T-shirt or light shirt")
	default:
		recs = append(recs, "👕 Light, breathable clothing", "🧢 Hat for sun protection")
	}

	if precip > 1 {
		recs = append(recs, "☂️ Umbrella or raincoat")
		if precip > 10 {
			recs = append(recs, "👢 Waterproof footwear")
		}
	}

	if wind > 10 {
		recs = append(recs, "🧥 Windbreaker recommended")
	}

	if c.IsSunny() {
		recs = append(recs, "🕶️ Sunglasses", "🧴 Sunscreen")
	}

	return recs
}

// Build derives the full report for a prediction and persona.
func Build(p *forecast.Prediction, persona Persona) Report {
	c, summary := Classify(p)
	return Report{
		Condition:       c,
		Summary:         summary,
		TemperatureBand: Band(p.Stats.Temperature.Mean),
		Description:     Describe(p, c, persona),
		Emoji:           Emoji(c),
		Activities:      Activities(p, c),
		Clothing:        Clothing(p, c),
		Persona:         persona,
	}
}
