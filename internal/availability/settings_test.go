package availability

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitflow/pkg/config"
)

func TestSettingsFromConfig(t *testing.T) {
	s, err := SettingsFromConfig(config.ScheduleConfig{
		Timezone:              "Europe/Berlin",
		DayStart:              "07:30",
		DayEnd:                "21:00",
		DefaultSessionMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, 450, s.DayStart)
	assert.Equal(t, 1260, s.DayEnd)
	assert.Equal(t, 30, s.DefaultSession)
	assert.Equal(t, DefaultMinWindowMinutes, s.MinWindow)
	assert.Equal(t, "Europe/Berlin", s.Location.String())

	now := time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-20", s.Today(now))
}

func TestSettingsFromConfig_Invalid(t *testing.T) {
	_, err := SettingsFromConfig(config.ScheduleConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)

	_, err = SettingsFromConfig(config.ScheduleConfig{DayStart: "22:00", DayEnd: "06:00"})
	assert.Error(t, err)

	_, err = SettingsFromConfig(config.ScheduleConfig{DayEnd: "25:00"})
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ValidationError{Field: "day"}))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInvalidDate))
	assert.Equal(t, http.StatusConflict, HTTPStatus(&ConflictError{Reason: "already scheduled"}))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(&NotFoundError{Resource: "user", ID: 3}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(&PersistenceError{Op: "insert", Err: errors.New("boom")}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}
