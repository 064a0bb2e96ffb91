package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/openinghours"
)

// Closure is a recurring full-day closure, e.g. a public holiday
type Closure struct {
	Name               string   `yaml:"name" validate:"required"`
	RRule              string   `yaml:"rrule" validate:"required"`
	ReservationUnitIDs []string `yaml:"reservationUnitIDs,omitempty"`
}

// OpeningHoursEntry is one weekly opening period of a reservation unit
type OpeningHoursEntry struct {
	ReservationUnitID string `yaml:"reservationUnitID" validate:"required"`
	Day               string `yaml:"day" validate:"required"`
	Begin             string `yaml:"begin" validate:"required"`
	End               string `yaml:"end" validate:"required"`
}

// OpeningHoursConfig selects where opening hours come from. When SheetID is
// set the hours are read from the spreadsheet, otherwise Static is used.
type OpeningHoursConfig struct {
	SheetID  string              `yaml:"sheetID,omitempty"`
	SheetTab string              `yaml:"sheetTab,omitempty" validate:"required_with=SheetID"`
	Static   []OpeningHoursEntry `yaml:"static,omitempty" validate:"dive"`
}

// RedisConfig enables the shared Redis lock. Without it locks are process-local.
type RedisConfig struct {
	URL        string        `yaml:"url" validate:"required"`
	Password   string        `yaml:"password,omitempty"`
	LockPrefix string        `yaml:"lockPrefix,omitempty"`
	LockTTL    time.Duration `yaml:"lockTTL,omitempty" validate:"omitempty,min=1s"`
	LockWait   time.Duration `yaml:"lockWait,omitempty" validate:"omitempty,min=0"`
}

// Config represents the application configuration
type Config struct {
	TimeZone     string             `yaml:"timeZone" validate:"required"`
	DatabaseURL  string             `yaml:"databaseURL" validate:"required"`
	Redis        *RedisConfig       `yaml:"redis,omitempty"`
	AMQPURL      string             `yaml:"amqpURL,omitempty" validate:"omitempty,url"`
	OpeningHours OpeningHoursConfig `yaml:"openingHours"`
	Closures     []Closure          `yaml:"closures,omitempty" validate:"dive"`

	location *time.Location
}

// Location returns the configured time zone. Only valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// UsesSheets reports whether opening hours are read from Google Sheets
func (c *Config) UsesSheets() bool {
	return c.OpeningHours.SheetID != ""
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates allocation_config.<env>.yaml (or
// allocation_config.yaml when env is empty).
//
// Variables from .env.<env> and .env are loaded first and ${VAR} references
// in the YAML are expanded, so secrets such as DATABASE_URL stay out of the
// config file.
func LoadWithEnv(env string) (*Config, error) {
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	configFileName := "allocation_config.yaml"
	if env != "" {
		configFileName = "allocation_config." + env + ".yaml"
	}

	configPath, err := findFile(configFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// loadDotEnv loads .env.<env> then .env. Existing variables are never
// overwritten and missing files are ignored.
func loadDotEnv(env string) error {
	files := []string{".env"}
	if env != "" {
		files = []string{".env." + env, ".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct, the time zone, closure rules
// and static opening hours
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid timeZone %q: %w", cfg.TimeZone, err)
	}
	cfg.location = loc

	for i, closure := range cfg.Closures {
		if _, err := rrule.StrToRRule(closure.RRule); err != nil {
			return fmt.Errorf("invalid rrule in closures[%d]: %w", i, err)
		}
	}

	if _, err := cfg.StaticOpeningHours(); err != nil {
		return err
	}

	return nil
}

// StaticOpeningHours converts the static opening hour entries
func (c *Config) StaticOpeningHours() ([]model.OpeningHours, error) {
	hours := make([]model.OpeningHours, 0, len(c.OpeningHours.Static))
	for i, entry := range c.OpeningHours.Static {
		day, err := model.ParseWeekday(entry.Day)
		if err != nil {
			return nil, fmt.Errorf("invalid day in openingHours.static[%d]: %w", i, err)
		}
		begin, err := model.ParseTimeOfDay(entry.Begin)
		if err != nil {
			return nil, fmt.Errorf("invalid begin in openingHours.static[%d]: %w", i, err)
		}
		end, err := model.ParseTimeOfDay(entry.End)
		if err != nil {
			return nil, fmt.Errorf("invalid end in openingHours.static[%d]: %w", i, err)
		}
		if begin >= end {
			return nil, fmt.Errorf("openingHours.static[%d] must begin before it ends", i)
		}

		hours = append(hours, model.OpeningHours{
			ReservationUnitID: entry.ReservationUnitID,
			DayOfTheWeek:      day,
			BeginTime:         begin,
			EndTime:           end,
		})
	}
	return hours, nil
}

// ClosureRules parses the configured closures
func (c *Config) ClosureRules() ([]openinghours.Closure, error) {
	closures := make([]openinghours.Closure, 0, len(c.Closures))
	for _, closure := range c.Closures {
		parsed, err := openinghours.ParseClosure(closure.Name, closure.RRule, closure.ReservationUnitIDs)
		if err != nil {
			return nil, err
		}
		closures = append(closures, parsed)
	}
	return closures, nil
}

// findFile searches for fileName in the current directory and then the home directory
func findFile(fileName string) (string, error) {
	if _, err := os.Stat(fileName); err == nil {
		return fileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, fileName)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", fileName)
}
