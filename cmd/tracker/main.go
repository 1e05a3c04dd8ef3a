package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/config"
	"github.com/vivekgangdhar11/wakeme/module/core/client"
	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
	"github.com/vivekgangdhar11/wakeme/module/core/service"
	wsignal "github.com/vivekgangdhar11/wakeme/module/core/signal"
)

type Options struct {
	API       string `short:"u" long:"api"        env:"WAKEME_API"    description:"Trip API base URL" default:"http://localhost:8080/api"`
	Settings  string `short:"c" long:"settings"   env:"SETTINGS_FILE" description:"Path to settings file"`
	LogLevel  string `long:"log-level"            env:"LOG_LEVEL"     description:"Log level" default:"info"`
	LogFormat string `long:"log-format"           env:"LOG_FORMAT"    description:"Log format (json, console)" default:"console"`

	TripID    string  `short:"t" long:"trip"  description:"Track an existing trip"`
	Title     string  `long:"title"           description:"Title of a new trip"`
	DestLat   float64 `long:"dest-lat"        description:"Destination latitude of a new trip"`
	DestLng   float64 `long:"dest-lng"        description:"Destination longitude of a new trip"`
	PlaceName string  `long:"place"           description:"Destination name of a new trip"`
	Radius    float64 `short:"r" long:"radius" description:"Wake radius in meters (settings default when omitted)"`

	SerialPort string        `short:"s" long:"serial" env:"GPS_SERIAL" description:"Serial port of an NMEA GPS receiver"`
	Baud       int           `long:"baud"             env:"GPS_BAUD"   description:"Serial baud rate" default:"9600"`
	NMEAFile   string        `short:"f" long:"nmea-file"                description:"Replay an NMEA log instead of a receiver"`
	Pace       time.Duration `long:"pace"                               description:"Delay between replayed fixes" default:"1s"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger, err := config.NewLogger(opts.LogLevel, opts.LogFormat, os.Stderr)
	if err != nil {
		logger = config.DefaultLogger()
		logger.Fatal().Err(err).Msg("logger")
	}

	settings, err := config.LoadSettings(opts.Settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("settings")
	}

	source, err := newSource(&opts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("location source")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewTripClient(opts.API, 10*time.Second)
	trip, err := resolveTrip(ctx, api, &opts, settings.DefaultRadiusMeters)
	if err != nil {
		logger.Fatal().Err(err).Msg("trip")
	}
	if trip.EndedAt != nil {
		logger.Fatal().Str("trip_id", trip.ID).Msg("trip has already ended")
	}

	tracker := service.NewTracker(trip.ID, trip.Geofence(), settings.TrackerSettings(), source, api,
		wsignal.NewConsoleSignal(os.Stdout, logger), logger)
	if err := tracker.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start tracking")
	}

	fmt.Printf("Tracking %q: %s within %.0f m\n", trip.Title, describe(trip.Destination), trip.RadiusMeters)
	fmt.Println("Commands: stop (silence alarm), retry (restart alarm sound), end (finish trip)")

	commands := make(chan string)
	go readCommands(commands)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tracker.Close()
			fmt.Println()
			logger.Info().Msg("interrupted, trip left open")
			return
		case <-ticker.C:
			fmt.Printf("\r%-80s", tracker.Status().String())
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if done := handleCommand(cmd, tracker, logger); done {
				return
			}
		}
	}
}

func newSource(opts *Options, logger zerolog.Logger) (location.Source, error) {
	switch {
	case opts.SerialPort != "" && opts.NMEAFile != "":
		return nil, errors.New("use either --serial or --nmea-file")
	case opts.SerialPort != "":
		return location.NewSerialSource(opts.SerialPort, opts.Baud, logger), nil
	case opts.NMEAFile != "":
		return location.NewFileSource(opts.NMEAFile, opts.Pace, logger), nil
	default:
		return nil, errors.New("no location source, pass --serial or --nmea-file")
	}
}

func resolveTrip(ctx context.Context, api *client.TripClient, opts *Options, defaultRadius float64) (*domain.Trip, error) {
	if opts.TripID != "" {
		return api.GetTrip(ctx, opts.TripID)
	}

	radius := opts.Radius
	if radius == 0 {
		radius = defaultRadius
	}
	return api.CreateTrip(ctx, &domain.NewTrip{
		Title: opts.Title,
		Destination: &domain.Destination{
			Coordinate: domain.Coordinate{Lat: opts.DestLat, Lng: opts.DestLng},
			PlaceName:  opts.PlaceName,
		},
		RadiusMeters: radius,
	})
}

func readCommands(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
}

// handleCommand reports whether the tracker is finished.
func handleCommand(cmd string, tracker *service.Tracker, logger zerolog.Logger) bool {
	switch cmd {
	case "":
	case "stop":
		if !tracker.StopAlarm() {
			fmt.Println("\nalarm is not sounding")
		}
	case "retry":
		if err := tracker.RetryAlarm(); err != nil {
			logger.Error().Err(err).Msg("alarm still failing")
		}
	case "end":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		fmt.Println()
		if err := tracker.End(ctx); err != nil {
			logger.Error().Err(err).Msg("end trip")
		}
		return true
	default:
		fmt.Printf("\nunknown command %q\n", cmd)
	}
	return false
}

func describe(d domain.Destination) string {
	if d.PlaceName != "" {
		return d.PlaceName
	}
	return fmt.Sprintf("%.5f,%.5f", d.Lat, d.Lng)
}
