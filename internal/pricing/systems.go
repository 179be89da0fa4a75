package pricing

import "strings"

// System type names as they appear on quotes and parts.
const (
	SystemConventional       = "Conventional"
	SystemIPSiteConnect      = "IP Site Connect"
	SystemCapacityPlus       = "Capacity Plus"
	SystemLinkedCapacityPlus = "Linked Capacity Plus"
	SystemCapacityMax        = "Capacity Max"
)

// SystemProfile captures the per-technology limits and charges.
type SystemProfile struct {
	Name string
	// MaxUsersPerSite is the tiered capacity checked by the safety validator.
	MaxUsersPerSite int
	// UsersPerRepeater drives repeater counts for system-level quotes.
	UsersPerRepeater int
	// LinkingRatePerSite is zero for technologies that cannot link sites.
	LinkingRatePerSite float64
	Licensed           bool
	MultiSite          bool
}

var profiles = map[string]SystemProfile{
	"conventional": {
		Name:             SystemConventional,
		MaxUsersPerSite:  100,
		UsersPerRepeater: 50,
	},
	"ip site connect": {
		Name:               SystemIPSiteConnect,
		MaxUsersPerSite:    250,
		UsersPerRepeater:   50,
		LinkingRatePerSite: 2500,
		Licensed:           true,
		MultiSite:          true,
	},
	"capacity plus": {
		Name:             SystemCapacityPlus,
		MaxUsersPerSite:  1200,
		UsersPerRepeater: 100,
		Licensed:         true,
	},
	"linked capacity plus": {
		Name:               SystemLinkedCapacityPlus,
		MaxUsersPerSite:    3000,
		UsersPerRepeater:   100,
		LinkingRatePerSite: 3500,
		Licensed:           true,
		MultiSite:          true,
	},
	"capacity max": {
		Name:               SystemCapacityMax,
		MaxUsersPerSite:    5000,
		UsersPerRepeater:   150,
		LinkingRatePerSite: 5000,
		Licensed:           true,
		MultiSite:          true,
	},
}

// aliases maps loose spellings onto canonical profile keys.
var aliases = map[string]string{
	"basic":  "conventional",
	"analog": "conventional",
	"ipsc":   "ip site connect",
	"cap+":   "capacity plus",
	"lcp":    "linked capacity plus",
	"capmax": "capacity max",
}

func normalize(systemType string) string {
	key := strings.ToLower(strings.TrimSpace(systemType))
	key = strings.Join(strings.Fields(strings.ReplaceAll(key, "_", " ")), " ")
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

// Profile returns the profile for a system type, matched case-insensitively.
func Profile(systemType string) (SystemProfile, bool) {
	p, ok := profiles[normalize(systemType)]
	return p, ok
}

// IsBasic reports whether the system type is a basic/conventional system
// that cannot serve a multi-site deployment.
func IsBasic(systemType string) bool {
	key := normalize(systemType)
	return key == "conventional" || strings.Contains(key, "basic") || strings.Contains(key, "conventional")
}

// LinkingRate returns the per-site inter-site linking surcharge.
func LinkingRate(systemType string) (float64, bool) {
	p, ok := Profile(systemType)
	if !ok || p.LinkingRatePerSite == 0 {
		return 0, false
	}
	return p.LinkingRatePerSite, true
}

// RepeatersFor returns how many repeaters a site with the given user count
// needs under a profile, at least one.
func (p SystemProfile) RepeatersFor(users int) int {
	if p.UsersPerRepeater <= 0 || users <= 0 {
		return 1
	}
	return (users + p.UsersPerRepeater - 1) / p.UsersPerRepeater
}

// CanonicalName returns the canonical spelling of a known system type, or
// the input unchanged.
func CanonicalName(systemType string) string {
	if p, ok := Profile(systemType); ok {
		return p.Name
	}
	return strings.TrimSpace(systemType)
}
