package availability

import (
	"fmt"
	"time"

	"habitflow/pkg/config"
)

const (
	MinutesPerDay = 24 * 60

	DefaultDayStart                = 6 * 60  // 06:00
	DefaultDayEnd                  = 22 * 60 // 22:00
	DefaultSessionMinutes          = 45
	DefaultMinWindowMinutes        = 20
	DefaultSuggestionWindowMinutes = 30

	// Custom entries without a title are shown as this.
	FallbackTitle = "Scheduled time"
)

// Settings are the tunables shared by every engine component.
type Settings struct {
	DayStart         int
	DayEnd           int
	DefaultSession   int
	MinWindow        int
	SuggestionWindow int
	Location         *time.Location
}

func DefaultSettings() Settings {
	return Settings{
		DayStart:         DefaultDayStart,
		DayEnd:           DefaultDayEnd,
		DefaultSession:   DefaultSessionMinutes,
		MinWindow:        DefaultMinWindowMinutes,
		SuggestionWindow: DefaultSuggestionWindowMinutes,
		Location:         time.UTC,
	}
}

// SettingsFromConfig validates the schedule section and fills gaps with defaults.
func SettingsFromConfig(cfg config.ScheduleConfig) (Settings, error) {
	s := DefaultSettings()

	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return s, fmt.Errorf("schedule.timezone: %w", err)
		}
		s.Location = loc
	}
	if cfg.DayStart != "" {
		m, err := ParseTime(cfg.DayStart)
		if err != nil {
			return s, fmt.Errorf("schedule.day_start: %w", err)
		}
		s.DayStart = m
	}
	if cfg.DayEnd != "" {
		m, err := ParseTime(cfg.DayEnd)
		if err != nil {
			return s, fmt.Errorf("schedule.day_end: %w", err)
		}
		s.DayEnd = m
	}
	if s.DayStart >= s.DayEnd {
		return s, fmt.Errorf("schedule: day_start %s must be before day_end %s",
			FormatMinute(s.DayStart), FormatMinute(s.DayEnd))
	}
	if cfg.DefaultSessionMinutes > 0 {
		s.DefaultSession = cfg.DefaultSessionMinutes
	}
	if cfg.MinWindowMinutes > 0 {
		s.MinWindow = cfg.MinWindowMinutes
	}
	if cfg.SuggestionWindowMinutes > 0 {
		s.SuggestionWindow = cfg.SuggestionWindowMinutes
	}
	return s, nil
}

// Today is the current date in the configured zone.
func (s Settings) Today(now time.Time) string {
	return now.In(s.location()).Format(DateLayout)
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// MinuteOfDay is the current minute of day in the configured zone.
func (s Settings) MinuteOfDay(now time.Time) int {
	local := now.In(s.location())
	return local.Hour()*60 + local.Minute()
}
