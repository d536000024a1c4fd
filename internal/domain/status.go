package domain

import (
	"strconv"
	"strings"
	"time"
)

// ParseStartTime parses a time of day written as 24-hour "HH:MM" or 12-hour "HH:MM am/pm".
// The am/pm suffix is case-insensitive and may follow the minutes with or without a space.
func ParseStartTime(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}
	meridiem := ""
	switch {
	case strings.HasSuffix(s, "am"):
		meridiem = "am"
	case strings.HasSuffix(s, "pm"):
		meridiem = "pm"
	}
	if meridiem != "" {
		s = strings.TrimSpace(strings.TrimSuffix(s, meridiem))
	}
	hh, mm, found := strings.Cut(s, ":")
	if !found || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	if meridiem == "" {
		if h < 0 || h > 23 {
			return 0, 0, false
		}
		return h, m, true
	}
	if h < 1 || h > 12 {
		return 0, 0, false
	}
	if h == 12 {
		h = 0
	}
	if meridiem == "pm" {
		h += 12
	}
	return h, m, true
}

// StartMoment combines a calendar date with a time of day in loc. An unparsable or empty
// start time falls back to midnight of the date.
func StartMoment(date time.Time, startTime string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	h, m, ok := ParseStartTime(startTime)
	if !ok {
		h, m = 0, 0
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, loc)
}

// EffectiveWorkshopStatus maps a stored status to what it means at instant now.
// An upcoming workshop whose start moment is strictly before now is completed; the
// location of now is used to interpret the date and start time.
func EffectiveWorkshopStatus(stored WorkshopStatus, date *time.Time, startTime string, now time.Time) WorkshopStatus {
	switch stored {
	case WorkshopStatusDraft, WorkshopStatusCancelled, WorkshopStatusCompleted, WorkshopStatusReady:
		return stored
	case WorkshopStatusUpcoming:
		if date == nil {
			return WorkshopStatusUpcoming
		}
		if StartMoment(*date, startTime, now.Location()).Before(now) {
			return WorkshopStatusCompleted
		}
		return WorkshopStatusUpcoming
	default:
		return WorkshopStatusReady
	}
}

// EffectiveStatus is EffectiveWorkshopStatus applied to w.
func (w *Workshop) EffectiveStatus(now time.Time) WorkshopStatus {
	return EffectiveWorkshopStatus(w.Status, w.Date, w.StartTime, now)
}

// IsOpenForRegistration reports whether an effective status accepts registrations.
func IsOpenForRegistration(effective WorkshopStatus) bool {
	return effective == WorkshopStatusUpcoming || effective == WorkshopStatusReady
}

// EffectiveRegistrationStatus derives the timeline status of reg. Registration-level
// cancellation and waitlisting win; otherwise the parent workshop decides. When the
// workshop is gone the registration's own snapshot date and time are compared with now.
func EffectiveRegistrationStatus(reg *Registration, w *Workshop, now time.Time) RegistrationStatus {
	if reg.Status == RegistrationStatusCancelled || reg.Status == RegistrationStatusWaitlist {
		return reg.Status
	}
	if w != nil {
		switch w.EffectiveStatus(now) {
		case WorkshopStatusCancelled:
			return RegistrationStatusCancelled
		case WorkshopStatusCompleted:
			return RegistrationStatusCompleted
		default:
			return RegistrationStatusUpcoming
		}
	}
	if reg.Workshop.Date == nil {
		return RegistrationStatusUpcoming
	}
	if StartMoment(*reg.Workshop.Date, reg.Workshop.StartTime, now.Location()).Before(now) {
		return RegistrationStatusCompleted
	}
	return RegistrationStatusUpcoming
}
