// ABOUTME: Partial updates to AgentSettings
// ABOUTME: Shared by the settings CLI command and the update_agent_settings tool
package models

// SettingsUpdate holds optional changes; nil fields leave the setting untouched.
type SettingsUpdate struct {
	Enabled                  *bool
	AutoSend                 *bool
	MaxEmailsPerDay          *int
	SendHoursStart           *int
	SendHoursEnd             *int
	SendDays                 *string
	MinMinutesBetweenSends   *int
	AllowedICPFits           []string
	MinMatchScore            *int
	MaxContactsPerLeadPerDay *int
}

// Apply merges u into s and validates the result. s is left partially
// updated on error, so callers should apply to a copy they can discard.
func (u SettingsUpdate) Apply(s *AgentSettings) error {
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.AutoSend != nil {
		s.AutoSend = *u.AutoSend
	}
	setInt(&s.MaxEmailsPerDay, u.MaxEmailsPerDay)
	setInt(&s.SendHoursStart, u.SendHoursStart)
	setInt(&s.SendHoursEnd, u.SendHoursEnd)
	setInt(&s.MinMinutesBetweenSends, u.MinMinutesBetweenSends)
	setInt(&s.MinMatchScore, u.MinMatchScore)
	setInt(&s.MaxContactsPerLeadPerDay, u.MaxContactsPerLeadPerDay)

	if u.SendDays != nil {
		days, err := ParseWeekdays(*u.SendDays)
		if err != nil {
			return err
		}
		s.SendDays = days
	}

	if u.AllowedICPFits != nil {
		fits := make([]ICPFit, 0, len(u.AllowedICPFits))
		for _, raw := range u.AllowedICPFits {
			fit, err := ParseICPFit(raw)
			if err != nil {
				return err
			}
			fits = append(fits, fit)
		}
		s.AllowedICPFits = fits
	}

	return s.Validate()
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
