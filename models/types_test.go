// ABOUTME: Tests for outreach data models
// ABOUTME: Validates settings validation, weekday parsing and normalization helpers
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValidAndPaused(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.False(t, s.Enabled, "a fresh install must fail closed")
	assert.True(t, s.AllowsFit(ICPHigh))
	assert.False(t, s.AllowsFit(ICPLow))
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *AgentSettings)
		errMsg string
	}{
		{"inverted window", func(s *AgentSettings) { s.SendHoursStart, s.SendHoursEnd = 17, 9 }, "send_hours_start must be before"},
		{"hour out of range", func(s *AgentSettings) { s.SendHoursStart = 25 }, "send_hours_start must be within"},
		{"negative budget", func(s *AgentSettings) { s.MaxEmailsPerDay = -1 }, "max_emails_per_day"},
		{"negative gap", func(s *AgentSettings) { s.MinMinutesBetweenSends = -5 }, "min_minutes_between_sends"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays("Fri, mon,tuesday,mon")
	require.NoError(t, err)
	assert.Equal(t, Weekdays{time.Monday, time.Tuesday, time.Friday}, days)
	assert.Equal(t, "mon,tue,fri", days.String())
	assert.True(t, days.Contains(time.Friday))
	assert.False(t, days.Contains(time.Sunday))

	empty, err := ParseWeekdays("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseWeekdays("mon,funday")
	assert.Error(t, err)
}

func TestParseICPFitAndStatus(t *testing.T) {
	fit, err := ParseICPFit(" medium ")
	require.NoError(t, err)
	assert.Equal(t, ICPMedium, fit)

	_, err = ParseICPFit("maybe")
	assert.Error(t, err)

	status, err := ParseLeadStatus("Contacted")
	require.NoError(t, err)
	assert.Equal(t, LeadContacted, status)

	_, err = ParseLeadStatus("archived")
	assert.Error(t, err)
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "acme.com", NormalizeWebsite("https://www.Acme.com/shop?x=1"))
	assert.Equal(t, "acme.com", NormalizeWebsite("acme.com"))
	assert.Equal(t, "shop.acme.com", NormalizeWebsite("http://shop.acme.com/"))
}

func TestGreetingName(t *testing.T) {
	assert.Equal(t, "Sam", (&Contact{FirstName: "Sam", FullName: "Samuel Reid"}).GreetingName())
	assert.Equal(t, "Dana", (&Contact{FullName: "Dana Scully"}).GreetingName())
	assert.Equal(t, "", (&Contact{}).GreetingName())
}

func TestSettingsUpdateApply(t *testing.T) {
	s := DefaultSettings()
	enabled := true
	budget := 10
	days := "sat,sun"

	err := SettingsUpdate{
		Enabled:         &enabled,
		MaxEmailsPerDay: &budget,
		SendDays:        &days,
		AllowedICPFits:  []string{"low"},
	}.Apply(&s)
	require.NoError(t, err)

	assert.True(t, s.Enabled)
	assert.False(t, s.AutoSend)
	assert.Equal(t, 10, s.MaxEmailsPerDay)
	assert.Equal(t, Weekdays{time.Sunday, time.Saturday}, s.SendDays)
	assert.Equal(t, []ICPFit{ICPLow}, s.AllowedICPFits)
	assert.Equal(t, 9, s.SendHoursStart)
}

func TestSettingsUpdateApplyRejects(t *testing.T) {
	start := 20
	s := DefaultSettings()
	assert.Error(t, SettingsUpdate{SendHoursStart: &start}.Apply(&s))

	s = DefaultSettings()
	assert.Error(t, SettingsUpdate{AllowedICPFits: []string{"maybe"}}.Apply(&s))

	bad := "mon,funday"
	s = DefaultSettings()
	assert.Error(t, SettingsUpdate{SendDays: &bad}.Apply(&s))
}
