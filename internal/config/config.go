package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/i474232898/weatherbot/internal/weather"
)

// Config is the bot configuration assembled from the INI file and the environment.
type Config struct {
	Units         string `validate:"oneof=us ca uk2 si"`
	Language      string `validate:"required"`
	TweetLocation bool
	Hashtag       string
	Refresh       time.Duration `validate:"min=1s"`
	RetryDelay    time.Duration `validate:"min=1s"`
	DMErrors      bool
	StringsPath   string `validate:"required"`
	CachePath     string `validate:"required"`

	ForecastTime   TimeOfDay
	ConditionTimes []TimeOfDay

	DefaultLocation  weather.Location
	VariableLocation VariableLocation

	Log       LogConfig
	Throttles Throttles
	Special   Special
	Provider  Provider
	Social    Social
	Server    Server
	Secrets   Secrets
}

type VariableLocation struct {
	Enabled             bool
	User                string `validate:"required_if=Enabled true"`
	Refresh             time.Duration
	UnnamedLocationName string
}

type LogConfig struct {
	Enabled    bool
	Path       string `validate:"required_if=Enabled true"`
	Debug      bool
	MaxSizeMB  int `validate:"gte=0"`
	MaxBackups int `validate:"gte=0"`
	MaxAgeDays int `validate:"gte=0"`
}

// Throttles holds cooldown minutes per special condition type.
type Throttles struct {
	Default    int `validate:"gte=0"`
	ByCategory map[string]int
}

// Minutes returns the cooldown for kind, falling back to the default.
func (t Throttles) Minutes(kind string) int {
	if m, ok := t.ByCategory[kind]; ok {
		return m
	}
	return t.Default
}

type Special struct {
	DryHumidity int `validate:"gte=0,lte=100"`
}

type Provider struct {
	Name    string `validate:"oneof=darksky openweather"`
	BaseURL string
	Timeout time.Duration `validate:"min=1s"`
}

type Social struct {
	BaseURL string `validate:"required,url"`
}

type Server struct {
	Enabled bool
	Address string `validate:"required_if=Enabled true"`
}

// Secrets are read from the environment, never from the INI file.
type Secrets struct {
	ConsumerKey       string `validate:"required"`
	ConsumerSecret    string `validate:"required"`
	AccessToken       string `validate:"required"`
	AccessTokenSecret string `validate:"required"`
	WeatherKey        string `validate:"required"`
	GeocoderKey       string
}

const envPrefix = "WEATHERBOT_"

var validate = validator.New()

// Load reads the INI file at path. A .env file in the working directory or
// next to the INI file is loaded first so secrets can live there.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	for _, envFile := range envFiles(path) {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARN: cannot load %s: %v", envFile, err)
		}
	}

	file, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true, IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg, err := fromINI(file)
	if err != nil {
		return nil, err
	}
	cfg.Secrets = secretsFromEnv()

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envFiles(path string) []string {
	files := []string{".env"}
	if beside := filepath.Join(filepath.Dir(path), ".env"); beside != ".env" {
		files = append(files, beside)
	}
	return files
}

func secretsFromEnv() Secrets {
	return Secrets{
		ConsumerKey:       os.Getenv(envPrefix + "CONSUMER_KEY"),
		ConsumerSecret:    os.Getenv(envPrefix + "CONSUMER_SECRET"),
		AccessToken:       os.Getenv(envPrefix + "ACCESS_TOKEN"),
		AccessTokenSecret: os.Getenv(envPrefix + "ACCESS_TOKEN_SECRET"),
		WeatherKey:        os.Getenv(envPrefix + "DARKSKY_KEY"),
		GeocoderKey:       os.Getenv(envPrefix + "GEOCODER_KEY"),
	}
}

func fromINI(file *ini.File) (*Config, error) {
	basic := file.Section("basic")
	cfg := &Config{
		Units:         basic.Key("units").MustString("us"),
		Language:      basic.Key("language").MustString("en"),
		TweetLocation: basic.Key("tweet_location").MustBool(true),
		Hashtag:       basic.Key("hashtag").String(),
		Refresh:       time.Duration(basic.Key("refresh").MustInt(3)) * time.Minute,
		RetryDelay:    time.Duration(basic.Key("retry_seconds").MustInt(60)) * time.Second,
		DMErrors:      basic.Key("dm_errors").MustBool(false),
		StringsPath:   basic.Key("strings").MustString("strings.yml"),
		CachePath:     basic.Key("cache").MustString(".wbcache.json"),
	}

	times := file.Section("scheduled times")
	forecast, err := ParseTime(times.Key("forecast").MustString("6:00"))
	if err != nil {
		return nil, fmt.Errorf("[scheduled times] forecast: %w", err)
	}
	cfg.ForecastTime = forecast
	cfg.ConditionTimes, err = ParseTimes(times.Key("conditions").MustString("7:00\n12:00\n15:00\n18:00\n22:00"))
	if err != nil {
		return nil, fmt.Errorf("[scheduled times] conditions: %w", err)
	}

	loc := file.Section("default location")
	cfg.DefaultLocation = weather.Location{
		Lat:  loc.Key("lat").MustFloat64(0),
		Lng:  loc.Key("lng").MustFloat64(0),
		Name: loc.Key("name").String(),
	}
	if cfg.DefaultLocation.Name == "" {
		return nil, errors.New("[default location] name is required")
	}
	if err := validate.Var(cfg.DefaultLocation.Lat, "latitude"); err != nil {
		return nil, fmt.Errorf("[default location] lat: %w", err)
	}
	if err := validate.Var(cfg.DefaultLocation.Lng, "longitude"); err != nil {
		return nil, fmt.Errorf("[default location] lng: %w", err)
	}

	variable := file.Section("variable location")
	cfg.VariableLocation = VariableLocation{
		Enabled:             variable.Key("enabled").MustBool(false),
		User:                variable.Key("user").String(),
		Refresh:             time.Duration(variable.Key("refresh").MustInt(30)) * time.Minute,
		UnnamedLocationName: variable.Key("unnamed_location_name").MustString("The Wilderness"),
	}

	logSec := file.Section("log")
	cfg.Log = LogConfig{
		Enabled:    logSec.Key("enabled").MustBool(false),
		Path:       logSec.Key("path").MustString("weatherBot.log"),
		Debug:      logSec.Key("debug").MustBool(false),
		MaxSizeMB:  logSec.Key("max_size_mb").MustInt(10),
		MaxBackups: logSec.Key("max_backups").MustInt(3),
		MaxAgeDays: logSec.Key("max_age_days").MustInt(28),
	}

	throttles := file.Section("throttles")
	cfg.Throttles = Throttles{
		Default:    throttles.Key("default").MustInt(120),
		ByCategory: map[string]int{},
	}
	for _, key := range throttles.Keys() {
		if key.Name() == "default" {
			continue
		}
		minutes, err := key.Int()
		if err != nil {
			return nil, fmt.Errorf("[throttles] %s: %w", key.Name(), err)
		}
		cfg.Throttles.ByCategory[key.Name()] = minutes
	}

	cfg.Special = Special{
		DryHumidity: file.Section("special").Key("dry_humidity").MustInt(25),
	}

	provider := file.Section("provider")
	cfg.Provider = Provider{
		Name:    provider.Key("name").MustString("darksky"),
		BaseURL: provider.Key("base_url").String(),
		Timeout: time.Duration(provider.Key("timeout_seconds").MustInt(10)) * time.Second,
	}

	cfg.Social = Social{
		BaseURL: file.Section("social").Key("base_url").MustString("https://api.twitter.com/1.1"),
	}

	server := file.Section("server")
	cfg.Server = Server{
		Enabled: server.Key("enabled").MustBool(false),
		Address: server.Key("address").MustString(":8080"),
	}

	return cfg, nil
}
