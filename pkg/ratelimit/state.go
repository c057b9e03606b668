// Package ratelimit tracks the daily call quota of an application key and
// gates chunk launches against it.
package ratelimit

import "time"

// Default quota values. The desktop proxy allows 10000 data calls per
// application key per UTC day.
const (
	// DefaultDailyLimit is the number of calls allowed per UTC day.
	DefaultDailyLimit = 10000

	// QuotaThresholdCritical: refuse launches below this many remaining calls.
	QuotaThresholdCritical = 50

	// QuotaThresholdWarning: throttle launches below this many remaining calls.
	QuotaThresholdWarning = 500
)

// Thresholds are the remaining-call levels that change gating behavior.
type Thresholds struct {
	Critical int
	Warning  int
}

// DefaultThresholds returns the package default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: QuotaThresholdCritical,
		Warning:  QuotaThresholdWarning,
	}
}

// QuotaState is the usage of one application key on one UTC day.
type QuotaState struct {
	Day       string    `json:"day"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
	IsHealthy bool      `json:"is_healthy"`
}

// Remaining returns the calls left today, never below zero.
func (s *QuotaState) Remaining() int {
	return max(s.Limit-s.Used, 0)
}

// NeedsCriticalBlock reports whether launches must be refused.
func (s *QuotaState) NeedsCriticalBlock(th Thresholds) bool {
	return s.Remaining() < th.Critical
}

// NeedsThrottling reports whether launches should be slowed down.
func (s *QuotaState) NeedsThrottling(th Thresholds) bool {
	return s.Remaining() < th.Warning && !s.NeedsCriticalBlock(th)
}

// TimeUntilReset returns how long until the quota resets, or zero if it
// already has.
func (s *QuotaState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth sets IsHealthy from the remaining calls.
func (s *QuotaState) UpdateHealth(th Thresholds) {
	s.IsHealthy = s.Remaining() >= th.Warning
}

// dayWindow returns the UTC day label for now and the instant the day ends.
func dayWindow(now time.Time) (string, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start.Format(time.DateOnly), start.AddDate(0, 0, 1)
}
