// Package featureflags evaluates the FEATURE_FLAGS setting per user.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags known to the calendar API.
const (
	ICalExport   = "ical_export"
	GoogleLogin  = "google_login"
	AvatarUpload = "avatar_upload"
)

// defaults apply to known flags that the configuration does not mention.
var defaults = map[string]string{
	ICalExport:   "on",
	GoogleLogin:  "on",
	AvatarUpload: "on",
}

// Manager holds flag rules parsed from a list such as
// "ical_export=on,avatar_upload=25%,google_login=off".
type Manager struct {
	rules map[string]string
}

// NewManager parses raw. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]string, len(defaults))
	for k, v := range defaults {
		rules[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		rules[key] = value
	}

	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Values are on/true/1,
// off/false/0 or a rollout percentage like 25%. Percentages never enable a
// flag for the anonymous user (id 0) unless they are 100% or more.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if userID == 0 {
		return false
	}
	return bucket(name, userID) < pct
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
