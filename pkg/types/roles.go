package types

import "sort"

// Role is a named grant assigned to a user by an administrator.
type Role string

const (
	RoleEditor    Role = "editor"
	RoleScheduler Role = "scheduler"
)

// Capability is an atomic permission derived from roles. Capabilities gate
// commands that touch talks the user did not create.
type Capability string

const (
	CapDeleteOtherTalks        Capability = "delete_other_talks"
	CapChangeOtherTitles       Capability = "change_other_titles"
	CapChangeOtherDescriptions Capability = "change_other_descriptions"
	CapChangeOtherDurations    Capability = "change_other_durations"
	CapChangeOtherScheduledAts Capability = "change_other_scheduled_ats"
	CapChangeOtherLocations    Capability = "change_other_locations"
)

// roleCapabilities is the static role→capability table. It is not persisted;
// capabilities are derived from roles on every login and relogin so that role
// changes take effect without re-issuing tokens.
var roleCapabilities = map[Role][]Capability{
	RoleEditor: {
		CapDeleteOtherTalks,
		CapChangeOtherTitles,
		CapChangeOtherDescriptions,
		CapChangeOtherDurations,
	},
	RoleScheduler: {
		CapChangeOtherScheduledAts,
		CapChangeOtherDurations,
		CapChangeOtherLocations,
	},
}

// CapabilitySet is the set of capabilities held by one session.
type CapabilitySet map[Capability]struct{}

// Contains reports whether the set holds the given capability.
func (s CapabilitySet) Contains(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the capabilities in lexical order, for stable wire output.
func (s CapabilitySet) Sorted() []Capability {
	caps := make([]Capability, 0, len(s))
	for c := range s {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Capabilities expands a role list into the capability set it grants.
func Capabilities(roles []Role) CapabilitySet {
	set := CapabilitySet{}
	for _, role := range roles {
		for _, c := range roleCapabilities[role] {
			set[c] = struct{}{}
		}
	}
	return set
}
