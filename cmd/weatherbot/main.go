package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weatherbot/internal/api/http"
	"github.com/i474232898/weatherbot/internal/condition"
	"github.com/i474232898/weatherbot/internal/config"
	"github.com/i474232898/weatherbot/internal/location"
	"github.com/i474232898/weatherbot/internal/logging"
	"github.com/i474232898/weatherbot/internal/scheduler"
	"github.com/i474232898/weatherbot/internal/social"
	"github.com/i474232898/weatherbot/internal/store"
	"github.com/i474232898/weatherbot/internal/weather"
	"github.com/i474232898/weatherbot/internal/weather/providers"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.ini>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logCloser := logging.Setup(logging.Options{
		File:       cfg.Log.Enabled,
		Path:       cfg.Log.Path,
		Debug:      cfg.Log.Debug,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	tmpl, err := condition.LoadTemplates(cfg.StringsPath)
	if err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}
	classifier := condition.NewClassifier(tmpl, condition.Options{DryHumidity: cfg.Special.DryHumidity})

	// Shared HTTP client for weather provider calls.
	httpClient := &http.Client{
		Timeout: cfg.Provider.Timeout,
	}
	provider := newProvider(cfg, httpClient)

	socialClient := social.NewClient(social.Credentials{
		ConsumerKey:       cfg.Secrets.ConsumerKey,
		ConsumerSecret:    cfg.Secrets.ConsumerSecret,
		AccessToken:       cfg.Secrets.AccessToken,
		AccessTokenSecret: cfg.Secrets.AccessTokenSecret,
	}, cfg.Social.BaseURL, cfg.Provider.Timeout)

	var locations scheduler.LocationSource = scheduler.FixedLocation(cfg.DefaultLocation)
	if cfg.VariableLocation.Enabled {
		opts := location.Options{
			User:         cfg.VariableLocation.User,
			FallbackName: cfg.VariableLocation.UnnamedLocationName,
			Interval:     cfg.VariableLocation.Refresh,
		}
		if cfg.Secrets.GeocoderKey != "" {
			opts.Geocoder = location.NewGoogleGeocoder(cfg.Secrets.GeocoderKey)
		}
		locations = location.NewTracker(socialClient, cfg.DefaultLocation, opts)
	}

	throttles := store.Load(cfg.CachePath, time.Now())
	planner := scheduler.NewPlanner(classifier, throttles, scheduler.Schedule{
		Forecast:   cfg.ForecastTime,
		Conditions: cfg.ConditionTimes,
		Refresh:    cfg.Refresh,
		Throttles:  cfg.Throttles,
	})

	bot := scheduler.New(provider, socialClient, locations, planner, throttles, scheduler.Options{
		Refresh:        cfg.Refresh,
		RetryDelay:     cfg.RetryDelay,
		Units:          weather.UnitSystem(cfg.Units),
		Language:       cfg.Language,
		Hashtag:        cfg.Hashtag,
		TweetLocation:  cfg.TweetLocation,
		PrefixLocation: cfg.VariableLocation.Enabled,
		CachePath:      cfg.CachePath,
	})
	if err := bot.Start(); err != nil {
		log.Fatalf("failed to start bot: %v", err)
	}
	defer bot.Stop()

	var app *fiber.App
	if cfg.Server.Enabled {
		app = newApp(bot)
		go func() {
			if err := app.Listen(cfg.Server.Address); err != nil {
				log.Printf("fiber server stopped: %v", err)
			}
		}()
	}

	// Wait for termination signal or a crashed cycle
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Printf("INFO: shutting down")
	case err := <-bot.Fatal():
		log.Printf("ERROR: %v", err)
		if cfg.DMErrors {
			dmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if dmErr := socialClient.SendDirectMessage(dmCtx, firstLine(err.Error())); dmErr != nil {
				log.Printf("ERROR: send crash message: %v", dmErr)
			}
			cancel()
		}
		exitCode = 1
	}

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("error during shutdown: %v", err)
		}
		cancel()
	}

	if exitCode != 0 {
		bot.Stop()
		logCloser.Close()
		os.Exit(exitCode)
	}
}

func newProvider(cfg *config.Config, client *http.Client) weather.Provider {
	switch cfg.Provider.Name {
	case "openweather":
		return providers.NewOpenWeatherProvider(client, cfg.Secrets.WeatherKey, cfg.Provider.BaseURL)
	default:
		return providers.NewDarkSkyProvider(client, cfg.Secrets.WeatherKey, cfg.Provider.BaseURL)
	}
}

func newApp(src httpapi.StatusSource) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weatherbot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weatherbot",
		})
	})

	httpapi.RegisterRoutes(app, src)
	return app
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
