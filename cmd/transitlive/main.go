package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/transitlive/transitlive"
	"github.com/transitlive/transitlive/config"
)

func main() {
	if os.Getenv("TRANSITLIVE_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if os.Getenv("TRANSITLIVE_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:  "transitlive",
		Usage: "query live transit arrivals for a set of stops",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yml",
				Usage: "path to the configuration file",
			},
			&cli.StringSliceFlag{
				Name:     "stops",
				Usage:    "stop codes to monitor",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "max-visits",
				Value: 10,
				Usage: "maximum upcoming visits per stop",
			},
			&cli.StringSliceFlag{
				Name:  "lines",
				Usage: "only show visits for these published line names",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	agg, closeStore, err := transitlive.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	resp, err := agg.Arrivals(ctx, c.StringSlice("stops"), c.Int("max-visits"))
	if err != nil {
		return err
	}
	if lines := c.StringSlice("lines"); len(lines) > 0 {
		resp.FilterLines(lines)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}
