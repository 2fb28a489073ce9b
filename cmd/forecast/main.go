// Package main provides the histocast command-line client.
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

// Globals are bound into every command's Run method.
type Globals struct {
	Debug bool `help:"Log pipeline progress to stderr."`
}

type cli struct {
	Globals

	Predict PredictCmd       `cmd:"" help:"Forecast one date at one location from historical data."`
	Token   TokenCmd         `cmd:"" help:"Mint an API access token."`
	Version kong.VersionFlag `help:"Print the version and exit."`
}

func (g *Globals) logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if g.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func (g *Globals) config() (*config.Config, zerolog.Logger, error) {
	log := g.logger()
	cfg, err := config.Load(log)
	return cfg, log, err
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("forecast"),
		kong.Description("Probabilistic weather forecasts from NASA POWER history."),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}
