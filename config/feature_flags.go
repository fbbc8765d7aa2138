package config

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Флаги функций.
const (
	FeatureNotifyDayUnlocked     = "notify.day_unlocked"
	FeatureNotifyCourseCompleted = "notify.course_completed"
	FeatureNotifyAttendance      = "notify.attendance"
	FeatureNotifyEnrolled        = "notify.enrolled"

	FeatureCatalogCache         = "catalog.cache"
	FeatureAutoAttendanceOnPass = "attendance.auto_on_pass"
)

// defaultRollout is the percentage each flag starts with; 0 means off.
var defaultRollout = map[string]int{
	FeatureNotifyDayUnlocked:     100,
	FeatureNotifyCourseCompleted: 100,
	FeatureNotifyAttendance:      0, // шумно, включается явно
	FeatureNotifyEnrolled:        100,
	FeatureCatalogCache:          100,
	FeatureAutoAttendanceOnPass:  100,
}

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// FeatureFlags holds rollout percentages and per-user overrides.
// A nil *FeatureFlags reports everything as off.
type FeatureFlags struct {
	mu        sync.RWMutex
	rollout   map[string]int
	overrides map[string]map[string]bool // feature -> user -> on
}

// FeatureContext narrows a check to one user.
type FeatureContext struct {
	UserID string
}

// LoadFeatureFlags applies FEATURE_<NAME> variables on top of the defaults.
// A value is a bool (on = 100%) or a percentage:
//
//	FEATURE_NOTIFY_ATTENDANCE=true
//	FEATURE_NOTIFY_DAY_UNLOCKED=25
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		rollout:   make(map[string]int, len(defaultRollout)),
		overrides: make(map[string]map[string]bool),
	}
	for name, pct := range defaultRollout {
		ff.rollout[name] = pct
		if pct, ok := parseRollout(os.Getenv(envKeyFor(name))); ok {
			ff.rollout[name] = pct
		}
	}
	return ff
}

func parseRollout(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if on, err := strconv.ParseBool(v); err == nil {
		if on {
			return 100, true
		}
		return 0, true
	}
	if pct, err := strconv.Atoi(v); err == nil && pct >= 0 && pct <= 100 {
		return pct, true
	}
	return 0, false
}

// envKeyFor: "notify.day_unlocked" -> "FEATURE_NOTIFY_DAY_UNLOCKED".
func envKeyFor(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled checks a flag, for one user when ctx names one.
// Without a user a partial rollout counts as on.
func (ff *FeatureFlags) IsEnabled(name string, ctx *FeatureContext) bool {
	if ff == nil {
		return false
	}
	user := ""
	if ctx != nil {
		user = ctx.UserID
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if on, ok := ff.overrides[name][user]; ok && user != "" {
		return on
	}
	pct := ff.rollout[name]
	switch {
	case pct <= 0:
		return false
	case pct >= 100 || user == "":
		return true
	}
	return bucket(name, user) < pct
}

// bucket puts a user in 0..99, stable per flag.
func bucket(name, user string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(user))
	return int(h.Sum32() % 100)
}

func (ff *FeatureFlags) SetUserOverride(userID, name string, on bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.overrides[name] == nil {
		ff.overrides[name] = make(map[string]bool)
	}
	ff.overrides[name][userID] = on
}

func (ff *FeatureFlags) SetRolloutPercent(name string, pct int) error {
	if pct < 0 || pct > 100 {
		return ErrInvalidRolloutPercent
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if _, ok := ff.rollout[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}
	ff.rollout[name] = pct
	return nil
}

// Summary lists "name=pct%" for every flag, sorted, for the startup log.
func (ff *FeatureFlags) Summary() []string {
	if ff == nil {
		return nil
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make([]string, 0, len(ff.rollout))
	for name, pct := range ff.rollout {
		out = append(out, fmt.Sprintf("%s=%d%%", name, pct))
	}
	sort.Strings(out)
	return out
}

// Gate binds a flag to a per-user check for the notification handler.
func (ff *FeatureFlags) Gate(name string) func(userID string) bool {
	return func(userID string) bool {
		return ff.IsEnabled(name, &FeatureContext{UserID: userID})
	}
}
