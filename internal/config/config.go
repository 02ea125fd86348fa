package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cwarden/skuld/internal/edgenav"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/parser"
	"github.com/cwarden/skuld/internal/validate"
)

var (
	setRe   = regexp.MustCompile(`^set\s+(\w+)\s+(.+)$`)
	bindRe  = regexp.MustCompile(`^bind\s+(\S+)\s+(\S+)$`)
	colorRe = regexp.MustCompile(`^color\s+(\w+)\s+(.+)$`)
)

type Config struct {
	// File settings
	EventsFile string
	ICSFile    string

	// Display settings
	WeekStartDay time.Weekday
	TimeFormat   string
	DateFormat   string
	StartupView  string
	SlotMinutes  int

	// UI settings
	Colors      map[string]string
	KeyBindings map[string]string

	// Interaction settings
	BatchInterval   time.Duration
	EdgeDelay       time.Duration
	EdgeRatio       float64
	EdgeMin         float64
	MinDate         time.Time
	MaxDate         time.Time
	BlockedWeekdays []time.Weekday

	// Behavior settings
	AutoRefresh bool
	LogLevel    slog.Level

	parser *parser.Parser
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	edge := edgenav.DefaultConfig()

	return &Config{
		EventsFile: filepath.Join(home, ".config", "skuld", "events.yaml"),

		WeekStartDay: time.Monday,
		TimeFormat:   "15:04",
		DateFormat:   "Jan 2, 2006",
		StartupView:  "month",
		SlotMinutes:  30,

		Colors: map[string]string{
			"normal":   "7",
			"today":    "11",
			"selected": "12",
			"weekend":  "4",
			"event":    "2",
			"proposal": "10",
			"invalid":  "9",
			"blocked":  "8",
			"header":   "15",
		},

		KeyBindings: map[string]string{
			"quit":         "q",
			"help":         "?",
			"today":        "t",
			"refresh":      "r",
			"add":          "n",
			"toggle_view":  "v",
			"move":         "m",
			"resize_start": "s",
			"resize_end":   "e",
			"commit":       "enter",
			"cancel":       "esc",
			"next_event":   "tab",
			"prev_event":   "shift+tab",
			"left":         "h",
			"right":        "l",
			"down":         "j",
			"up":           "k",
			"next_page":    ">",
			"prev_page":    "<",
		},

		BatchInterval: gesture.DefaultBatchInterval,
		EdgeDelay:     edge.Delay,
		EdgeRatio:     edge.ThresholdRatio,
		EdgeMin:       2, // terminal cells

		AutoRefresh: true,
		LogLevel:    slog.LevelWarn,
	}
}

// Paths returns the config file search order.
func Paths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{os.Getenv("SKULD_CONFIG")}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "skuld", "skuldrc"))
	}
	return append(paths,
		filepath.Join(home, ".config", "skuld", "skuldrc"),
		filepath.Join(home, ".skuldrc"),
	)
}

// LoadConfig reads the first config file found on the search path, or
// returns the defaults when there is none.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	for _, path := range Paths() {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); err == nil {
			if err := config.LoadFile(path); err != nil {
				return nil, fmt.Errorf("error loading config from %s: %w", path, err)
			}
			break
		}
	}

	return config, nil
}

// LoadFile applies the settings in path on top of c.
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := c.parseLine(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	return scanner.Err()
}

func (c *Config) parseLine(line string) error {
	if matches := setRe.FindStringSubmatch(line); matches != nil {
		return c.setVariable(matches[1], matches[2])
	}

	// bind key action
	if matches := bindRe.FindStringSubmatch(line); matches != nil {
		c.KeyBindings[matches[2]] = matches[1]
		return nil
	}

	if matches := colorRe.FindStringSubmatch(line); matches != nil {
		c.Colors[matches[1]] = matches[2]
		return nil
	}

	return fmt.Errorf("unknown config line: %s", line)
}

func (c *Config) setVariable(name, value string) error {
	// Remove quotes if present
	value = strings.Trim(value, `"'`)

	switch name {
	case "events_file":
		c.EventsFile = expandHome(value)

	case "ics_file":
		c.ICSFile = expandHome(value)

	case "week_start_day":
		switch strings.ToLower(value) {
		case "sunday", "sun", "0":
			c.WeekStartDay = time.Sunday
		case "monday", "mon", "1":
			c.WeekStartDay = time.Monday
		default:
			return fmt.Errorf("invalid week_start_day: %s", value)
		}

	case "time_format":
		c.TimeFormat = value

	case "date_format":
		c.DateFormat = value

	case "startup_view":
		switch value {
		case "month", "day":
			c.StartupView = value
		default:
			return fmt.Errorf("invalid startup_view: %s", value)
		}

	case "slot_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || 60%n != 0 {
			return fmt.Errorf("invalid slot_minutes: %s", value)
		}
		c.SlotMinutes = n

	case "batch_interval":
		d, err := parseDuration(value, time.Millisecond)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid batch_interval: %s", value)
		}
		c.BatchInterval = d

	case "edge_delay":
		d, err := parseDuration(value, time.Millisecond)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid edge_delay: %s", value)
		}
		c.EdgeDelay = d

	case "edge_ratio":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 0.5 {
			return fmt.Errorf("invalid edge_ratio: %s", value)
		}
		c.EdgeRatio = f

	case "edge_min":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid edge_min: %s", value)
		}
		c.EdgeMin = f

	case "min_date", "max_date":
		d, err := c.dateParser().ParseDate(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if name == "min_date" {
			c.MinDate = d
		} else {
			c.MaxDate = d
		}

	case "blocked_weekdays":
		c.BlockedWeekdays = nil
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			d, ok := parser.ParseWeekday(part)
			if !ok {
				return fmt.Errorf("invalid blocked_weekdays entry: %s", part)
			}
			c.BlockedWeekdays = append(c.BlockedWeekdays, d)
		}

	case "log_level":
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("invalid log_level: %s", value)
		}
		c.LogLevel = level

	case "auto_refresh":
		c.AutoRefresh = strings.ToLower(value) == "true" || value == "1"

	default:
		return fmt.Errorf("unknown config variable: %s", name)
	}

	return nil
}

// SetDateParser replaces the parser used for min_date and max_date, mostly so
// tests can pin "today".
func (c *Config) SetDateParser(p *parser.Parser) {
	c.parser = p
}

func (c *Config) dateParser() *parser.Parser {
	if c.parser == nil {
		c.parser = parser.New(time.Local)
	}
	return c.parser
}

// Slot returns the timeline slot length.
func (c *Config) Slot() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// EdgeConfig returns the edge-navigation settings.
func (c *Config) EdgeConfig() edgenav.Config {
	return edgenav.Config{
		Delay:          c.EdgeDelay,
		ThresholdRatio: c.EdgeRatio,
		MinThreshold:   c.EdgeMin,
		Min:            c.MinDate,
		Max:            c.MaxDate,
	}
}

// Pipeline returns the validation pipeline for the configured blocked days
// and date bounds. accept may be nil.
func (c *Config) Pipeline(accept validate.AcceptFunc, log *slog.Logger) *validate.Pipeline {
	p := &validate.Pipeline{Accept: accept, Min: c.MinDate, Max: c.MaxDate, Log: log}
	if len(c.BlockedWeekdays) > 0 {
		p.Regions = append(p.Regions, validate.Weekdays(c.BlockedWeekdays...))
	}
	return p
}

// EngineOptions returns gesture options for a surface of granularity g.
func (c *Config) EngineOptions(g gesture.Granularity, log *slog.Logger) gesture.Options {
	return gesture.Options{
		Granularity:   g,
		Slot:          c.Slot(),
		BatchInterval: c.BatchInterval,
		Edge:          c.EdgeConfig(),
		Pipeline:      c.Pipeline(nil, log),
		Logger:        log,
	}
}

// parseDuration accepts a Go duration or a bare number of unit.
func parseDuration(value string, unit time.Duration) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
