package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/derekprior/seasongen/internal/league"
)

// Number of kickoff bands the time-preference table is defined over.
const TimeBandCount = 4

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

type Season struct {
	Name         string `yaml:"name"`
	StartDate    Date   `yaml:"start_date"`
	EndDate      Date   `yaml:"end_date"`
	GamesPerTeam int    `yaml:"games_per_team"`
}

type Team struct {
	Name          string   `yaml:"name"`
	BlacklistDays []string `yaml:"blacklist_days"`
	PreferredTime string   `yaml:"preferred_time"`
}

// UnmarshalYAML accepts either a bare team name or a full mapping.
func (t *Team) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Name = value.Value
		return nil
	}
	type plain Team
	return value.Decode((*plain)(t))
}

type Division struct {
	Name  string `yaml:"name"`
	Teams []Team `yaml:"teams"`
}

type Slots struct {
	// Days games may be played on. Defaults to Monday through Friday.
	Days []string `yaml:"days"`
	// Kickoff bands, earliest first.
	TimeBands []string `yaml:"time_bands"`
	Fields    []string `yaml:"fields"`
}

type Database struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

type Config struct {
	Season    Season     `yaml:"season"`
	Divisions []Division `yaml:"divisions"`
	Slots     Slots      `yaml:"slots"`
	Strategy  string     `yaml:"strategy"`
	Database  Database   `yaml:"database"`
	Log       Log        `yaml:"log"`
}

var defaultSlotDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// AllTeams returns all team names across all divisions.
func (c *Config) AllTeams() []string {
	var teams []string
	for _, d := range c.Divisions {
		for _, t := range d.Teams {
			teams = append(teams, t.Name)
		}
	}
	return teams
}

// SlotDays returns the configured game days as a weekday set.
func (c *Config) SlotDays() league.Weekdays {
	days, err := league.ParseWeekdays(c.Slots.Days)
	if err != nil {
		// validate() has already rejected bad names
		return nil
	}
	return days
}

// League converts the configured season into domain records. IDs are left
// zero; the store assigns them when the season is synced.
func (c *Config) League() (league.Season, error) {
	season := league.Season{
		Name:         c.Season.Name,
		StartDate:    c.Season.StartDate.Time,
		EndDate:      c.Season.EndDate.Time,
		GamesPerTeam: c.Season.GamesPerTeam,
	}
	for _, d := range c.Divisions {
		div := league.Division{Name: d.Name}
		for _, t := range d.Teams {
			days, err := league.ParseWeekdays(t.BlacklistDays)
			if err != nil {
				return league.Season{}, fmt.Errorf("team %q: %w", t.Name, err)
			}
			pref, err := league.ParseTimePreference(t.PreferredTime)
			if err != nil {
				return league.Season{}, fmt.Errorf("team %q: %w", t.Name, err)
			}
			div.Teams = append(div.Teams, league.Team{
				Name:          t.Name,
				BlacklistDays: days,
				PreferredTime: pref,
			})
		}
		season.Divisions = append(season.Divisions, div)
	}
	return season, nil
}

// LoadFromBytes parses YAML bytes into a Config and validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads and parses a YAML config file. A .env file next to the
// config, when present, may override the database filename and log level.
func LoadFromFile(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Slots.Days) == 0 {
		c.Slots.Days = defaultSlotDays
	}
	if c.Strategy == "" {
		c.Strategy = "round_robin"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Filename == "" {
		c.Database.Filename = "seasongen.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SEASONGEN_DATABASE"); v != "" {
		c.Database.Filename = v
	}
	if v := os.Getenv("SEASONGEN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.Season.Name == "" {
		return fmt.Errorf("season name is required")
	}
	if !c.Season.EndDate.Time.After(c.Season.StartDate.Time) {
		return fmt.Errorf("end date %s must be after start date %s",
			c.Season.EndDate.Time.Format("2006-01-02"),
			c.Season.StartDate.Time.Format("2006-01-02"))
	}
	if c.Season.GamesPerTeam <= 0 {
		return fmt.Errorf("games_per_team must be positive")
	}

	if len(c.Divisions) == 0 {
		return fmt.Errorf("at least one division is required")
	}

	// Check for duplicate team names
	seen := make(map[string]string)
	for _, div := range c.Divisions {
		if div.Name == "" {
			return fmt.Errorf("division name is required")
		}
		for _, team := range div.Teams {
			if team.Name == "" {
				return fmt.Errorf("division %q has a team without a name", div.Name)
			}
			if prevDiv, ok := seen[team.Name]; ok {
				return fmt.Errorf("team %q appears in both %q and %q divisions", team.Name, prevDiv, div.Name)
			}
			seen[team.Name] = div.Name
			if _, err := league.ParseWeekdays(team.BlacklistDays); err != nil {
				return fmt.Errorf("team %q: %w", team.Name, err)
			}
			if _, err := league.ParseTimePreference(team.PreferredTime); err != nil {
				return fmt.Errorf("team %q: %w", team.Name, err)
			}
		}
	}

	if len(c.Slots.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	if len(c.Slots.TimeBands) != TimeBandCount {
		return fmt.Errorf("exactly %d time bands are required, got %d", TimeBandCount, len(c.Slots.TimeBands))
	}
	prev := ""
	for _, band := range c.Slots.TimeBands {
		if _, err := time.Parse("15:04", band); err != nil {
			return fmt.Errorf("invalid time band %q: want HH:MM", band)
		}
		if band <= prev {
			return fmt.Errorf("time bands must be listed earliest first, %q follows %q", band, prev)
		}
		prev = band
	}
	if _, err := league.ParseWeekdays(c.Slots.Days); err != nil {
		return fmt.Errorf("slots: %w", err)
	}

	switch c.Database.Driver {
	case "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	return nil
}
