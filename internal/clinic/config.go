// Package clinic provides clinic-specific configuration and business logic.
package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "17:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForWeekday returns the hours for a weekday, or nil when the clinic is closed.
func (b *BusinessHours) ForWeekday(day time.Weekday) *DayHours {
	switch day {
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return b.Sunday
	}
}

// Bounds resolves the open and close instants for the given calendar date.
// The date's year/month/day are combined with the configured wall-clock times.
func (d *DayHours) Bounds(date time.Time) (open, close time.Time, err error) {
	open, err = atClock(date, d.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("clinic: parse open time %q: %w", d.Open, err)
	}
	close, err = atClock(date, d.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("clinic: parse close time %q: %w", d.Close, err)
	}
	return open, close, nil
}

func atClock(date time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), nil
}

// Config holds clinic-specific configuration.
type Config struct {
	ClinicID           string        `json:"clinic_id"`
	Name               string        `json:"name"`
	Phone              string        `json:"phone,omitempty"`
	Timezone           string        `json:"timezone"` // e.g., "America/New_York"
	BusinessHours      BusinessHours `json:"business_hours"`
	DepositAmountCents int           `json:"deposit_amount_cents"` // e.g., 5000
}

// IsOpenOn reports whether the clinic has any hours on the given weekday.
func (c *Config) IsOpenOn(day time.Weekday) bool {
	return c.BusinessHours.ForWeekday(day) != nil
}

// Location resolves the clinic's timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(clinicID string) *Config {
	return &Config{
		ClinicID: clinicID,
		Name:     "Dermatology Clinic",
		Timezone: "America/New_York",
		BusinessHours: BusinessHours{
			Monday:    &DayHours{Open: "09:00", Close: "17:00"},
			Tuesday:   &DayHours{Open: "09:00", Close: "17:00"},
			Wednesday: &DayHours{Open: "09:00", Close: "17:00"},
			Thursday:  &DayHours{Open: "09:00", Close: "17:00"},
			Friday:    &DayHours{Open: "09:00", Close: "17:00"},
			Saturday:  &DayHours{Open: "10:00", Close: "14:00"},
			Sunday:    nil, // Closed
		},
		DepositAmountCents: 5000,
	}
}

// Store provides persistence for clinic configurations.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new clinic config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(clinicID string) string {
	return fmt.Sprintf("clinic:config:%s", clinicID)
}

// Get retrieves clinic config, returning default if not found.
func (s *Store) Get(ctx context.Context, clinicID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(clinicID)).Bytes()
	if err == redis.Nil {
		return DefaultConfig(clinicID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Set saves clinic config.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("clinic: marshal config: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(cfg.ClinicID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set config: %w", err)
	}

	return nil
}
