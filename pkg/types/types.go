package types

import (
	"encoding/json"
	"sort"
	"time"
)

// UserID identifies a registered user. IDs are assigned sequentially and
// never reused, even after deletions.
type UserID uint64

// TalkID identifies a talk.
type TalkID uint64

// AttendanceMode describes how a user participates in the event.
type AttendanceMode string

const (
	AttendanceOnSite AttendanceMode = "onsite"
	AttendanceRemote AttendanceMode = "remote"
)

// User is a registered participant. The (Name, Team) pair is unique.
type User struct {
	ID             UserID         `json:"id"`
	Name           string         `json:"name"`
	Team           string         `json:"team"`
	AttendanceMode AttendanceMode `json:"attendance_mode"`
	PasswordHash   string         `json:"password_hash"`
	Roles          []Role         `json:"roles"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Talk is a proposed or scheduled talk. Nerds are users offering to present,
// noobs are users asking to attend; the two sets are disjoint.
type Talk struct {
	ID          TalkID     `json:"id"`
	Creator     UserID     `json:"creator"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Duration    Seconds    `json:"duration"`
	Location    *string    `json:"location"`
	Nerds       UserIDSet  `json:"nerds"`
	Noobs       UserIDSet  `json:"noobs"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *Talk) Clone() Talk {
	clone := *t
	if t.ScheduledAt != nil {
		at := *t.ScheduledAt
		clone.ScheduledAt = &at
	}
	if t.Location != nil {
		loc := *t.Location
		clone.Location = &loc
	}
	clone.Nerds = t.Nerds.Clone()
	clone.Noobs = t.Noobs.Clone()
	return clone
}

// Equal reports whether two talks have identical fields and membership sets.
func (t *Talk) Equal(other *Talk) bool {
	if t.ID != other.ID || t.Creator != other.Creator ||
		t.Title != other.Title || t.Description != other.Description ||
		t.Duration != other.Duration {
		return false
	}
	if (t.ScheduledAt == nil) != (other.ScheduledAt == nil) {
		return false
	}
	if t.ScheduledAt != nil && !t.ScheduledAt.Equal(*other.ScheduledAt) {
		return false
	}
	if (t.Location == nil) != (other.Location == nil) {
		return false
	}
	if t.Location != nil && *t.Location != *other.Location {
		return false
	}
	return t.Nerds.Equal(other.Nerds) && t.Noobs.Equal(other.Noobs)
}

// TokenData records the owner and expiry of one bearer token.
type TokenData struct {
	UserID    UserID    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Teams is the fixed set of team names, provisioned at load time.
// Persisted as a JSON array of names.
type Teams []string

// Contains reports whether name is a known team.
func (t Teams) Contains(name string) bool {
	for _, team := range t {
		if team == name {
			return true
		}
	}
	return false
}

// Users is the user collection keyed by ID. Persisted as a JSON array of
// user records sorted by ID.
type Users map[UserID]User

// NextID returns max existing ID + 1.
func (u Users) NextID() UserID {
	var max UserID
	for id := range u {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// FindByNameAndTeam returns the user with the given (name, team) pair.
func (u Users) FindByNameAndTeam(name, team string) (User, bool) {
	for _, user := range u {
		if user.Name == name && user.Team == team {
			return user, true
		}
	}
	return User{}, false
}

func (u Users) MarshalJSON() ([]byte, error) {
	records := make([]User, 0, len(u))
	for _, user := range u {
		records = append(records, user)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return json.Marshal(records)
}

func (u *Users) UnmarshalJSON(data []byte) error {
	var records []User
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	users := make(Users, len(records))
	for _, user := range records {
		users[user.ID] = user
	}
	*u = users
	return nil
}

// Talks is the talk collection keyed by ID. Persisted as a JSON array of
// talk records sorted by ID.
type Talks map[TalkID]Talk

// NextID returns max existing ID + 1.
func (t Talks) NextID() TalkID {
	var max TalkID
	for id := range t {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (t Talks) MarshalJSON() ([]byte, error) {
	records := make([]Talk, 0, len(t))
	for _, talk := range t {
		records = append(records, talk)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return json.Marshal(records)
}

func (t *Talks) UnmarshalJSON(data []byte) error {
	var records []Talk
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	talks := make(Talks, len(records))
	for _, talk := range records {
		if talk.Nerds == nil {
			talk.Nerds = UserIDSet{}
		}
		if talk.Noobs == nil {
			talk.Noobs = UserIDSet{}
		}
		talks[talk.ID] = talk
	}
	*t = talks
	return nil
}

// TokenStore maps opaque bearer tokens to their owner and expiry.
// Persisted as a JSON object keyed by token.
type TokenStore map[string]TokenData

// Insert records a token for a user.
func (s TokenStore) Insert(token string, userID UserID, expiresAt time.Time) {
	s[token] = TokenData{UserID: userID, ExpiresAt: expiresAt}
}

// PurgeExpired deletes every token that expired before now.
func (s TokenStore) PurgeExpired(now time.Time) {
	for token, data := range s {
		if data.ExpiresAt.Before(now) {
			delete(s, token)
		}
	}
}

// UserIDSet is a set of user IDs, persisted as a sorted JSON array.
type UserIDSet map[UserID]struct{}

// NewUserIDSet builds a set from the given IDs.
func NewUserIDSet(ids ...UserID) UserIDSet {
	set := make(UserIDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set.
func (s UserIDSet) Contains(id UserID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s UserIDSet) Add(id UserID) {
	s[id] = struct{}{}
}

// Remove deletes id from the set.
func (s UserIDSet) Remove(id UserID) {
	delete(s, id)
}

// Clone returns an independent copy of the set.
func (s UserIDSet) Clone() UserIDSet {
	clone := make(UserIDSet, len(s))
	for id := range s {
		clone[id] = struct{}{}
	}
	return clone
}

// Equal reports whether both sets contain the same IDs.
func (s UserIDSet) Equal(other UserIDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Sorted returns the member IDs in ascending order.
func (s UserIDSet) Sorted() []UserID {
	ids := make([]UserID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s UserIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *UserIDSet) UnmarshalJSON(data []byte) error {
	var ids []UserID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewUserIDSet(ids...)
	return nil
}

// Seconds is a duration persisted as a whole number of seconds, keeping the
// on-disk JSON documents easy to edit by hand.
type Seconds time.Duration

// Duration converts to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(s) / time.Second))
}

func (s *Seconds) UnmarshalJSON(data []byte) error {
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*s = Seconds(time.Duration(secs) * time.Second)
	return nil
}
