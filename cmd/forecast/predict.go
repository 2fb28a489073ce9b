package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/bootstrap"
	"github.com/histocast/histocast/internal/classify"
	"github.com/histocast/histocast/internal/forecast"
	"github.com/histocast/histocast/internal/weather"
)

// PredictCmd runs the forecasting pipeline locally.
type PredictCmd struct {
	Lat  float64 `required:"" help:"Latitude in degrees (use --lat=-33.9 for southern latitudes)."`
	Lon  float64 `required:"" help:"Longitude in degrees (use --lon=-0.1 for western longitudes)."`
	Date string  `required:"" help:"Target date (YYYY-MM-DD)."`

	YearsBack         int     `help:"Historical years to use (0 = configured default)."`
	EnsembleSize      int     `help:"Monte Carlo members (0 = configured default)."`
	DayWindow         int     `help:"State half-window in days (0 = configured default)."`
	FetchWindow       int     `help:"Fetch half-window in days, at least the day window (0 = day window)."`
	VarianceThreshold float64 `help:"Cumulative explained variance to retain (0 = configured default)."`
	Seed              uint64  `help:"Sampling seed (0 = configured default)."`
	IncludeTargetYear bool    `help:"Use the target year as history; the date must be in the past."`

	Persona         string `enum:"sun_lover,rain_enjoyer,snow_enthusiast,balanced" default:"balanced" help:"Description persona (${enum})."`
	Output          string `short:"o" enum:"table,json" default:"table" help:"Output format (${enum})."`
	IncludeEnsemble bool   `help:"Include every ensemble member in JSON output."`
}

// Run executes the prediction and writes the result to stdout.
func (c *PredictCmd) Run(g *Globals) error {
	date, err := time.Parse(time.DateOnly, c.Date)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	persona, err := classify.ParsePersona(c.Persona)
	if err != nil {
		return err
	}

	cfg, log, err := g.config()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.PredictionTimeout)
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	pred, err := components.Predictor.Predict(ctx, forecast.Request{
		Lat:               c.Lat,
		Lon:               c.Lon,
		TargetDate:        date,
		YearsBack:         c.YearsBack,
		EnsembleSize:      c.EnsembleSize,
		DayWindow:         c.DayWindow,
		FetchWindow:       c.FetchWindow,
		VarianceThreshold: c.VarianceThreshold,
		Seed:              c.Seed,
		IncludeTargetYear: c.IncludeTargetYear,
	})
	if err != nil {
		return err
	}

	report := classify.Build(pred, persona)

	if c.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models.NewPredictionResponse(pred, report, c.IncludeEnsemble))
	}
	return writeTable(os.Stdout, pred, report)
}

func writeTable(out io.Writer, pred *forecast.Prediction, report classify.Report) error {
	md := pred.Metadata

	fmt.Fprintf(out, "%s at %.4f, %.4f\n", md.TargetDate, md.Location.Lat, md.Location.Lon)
	fmt.Fprintf(out, "%d members, %d components, %d samples from %d years",
		md.EnsembleSize, md.Components, md.SamplesUsed, len(md.YearsUsed))
	if len(md.YearsDropped) > 0 {
		fmt.Fprintf(out, " (%d dropped)", len(md.YearsDropped))
	}
	fmt.Fprint(out, "\n\n")

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "variable\tmean\tmedian\tstd\tp5\tp95\tunit\t")
	for _, v := range weather.AllVariables() {
		s := pred.Stats.Get(v)
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t\n", v, s.Mean, s.Median, s.Std, s.P5, s.P95, s.Unit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nchance of rain: %.0f%%\n", pred.PrecipitationProbability*100)
	fmt.Fprintf(out, "%s %s: %s\n", report.Emoji, report.Condition, report.Summary)
	fmt.Fprintf(out, "%s\n", report.Description)
	fmt.Fprintf(out, "activities: %s\n", strings.Join(report.Activities, ", "))
	_, err := fmt.Fprintf(out, "clothing:   %s\n", strings.Join(report.Clothing, ", "))
	return err
}
