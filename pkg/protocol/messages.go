package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mopad/mopad/pkg/types"
)

// CredentialType selects the one-shot authentication command a client
// sends before anything else.
type CredentialType string

const (
	CredentialRegister CredentialType = "register"
	CredentialLogin    CredentialType = "login"
	CredentialRelogin  CredentialType = "relogin"
)

// Credentials is the first inbound message on every connection.
type Credentials struct {
	Type           CredentialType        `json:"type"`
	Name           string                `json:"name,omitempty"`
	Team           string                `json:"team,omitempty"`
	AttendanceMode *types.AttendanceMode `json:"attendance_mode,omitempty"`
	Password       string                `json:"password,omitempty"`
	Token          string                `json:"token,omitempty"`
}

// DecodeCredentials parses the authentication message.
func DecodeCredentials(data []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode credentials: %w", err)
	}
	switch c.Type {
	case CredentialRegister, CredentialLogin, CredentialRelogin:
		return c, nil
	default:
		return Credentials{}, fmt.Errorf("unknown credential type %q", c.Type)
	}
}

// AuthReply answers the credentials message. Type is "success" or "error".
type AuthReply struct {
	Type         string             `json:"type"`
	UserID       types.UserID       `json:"user_id,omitempty"`
	Capabilities []types.Capability `json:"capabilities,omitempty"`
	Token        string             `json:"token,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// AuthSuccess builds the reply for an authenticated session.
func AuthSuccess(userID types.UserID, capabilities types.CapabilitySet, token string) AuthReply {
	return AuthReply{
		Type:         "success",
		UserID:       userID,
		Capabilities: capabilities.Sorted(),
		Token:        token,
	}
}

// AuthError builds the reply for a rejected authentication attempt.
func AuthError(reason string) AuthReply {
	return AuthReply{Type: "error", Reason: reason}
}

// CommandType tags an inbound post-authentication command.
type CommandType string

const (
	CmdAddTalk           CommandType = "add_talk"
	CmdRemoveTalk        CommandType = "remove_talk"
	CmdUpdateTitle       CommandType = "update_title"
	CmdUpdateDescription CommandType = "update_description"
	CmdUpdateScheduledAt CommandType = "update_scheduled_at"
	CmdUpdateDuration    CommandType = "update_duration"
	CmdUpdateLocation    CommandType = "update_location"
	CmdToggleNerd        CommandType = "toggle_nerd"
	CmdToggleNoob        CommandType = "toggle_noob"
	CmdSetAttendanceMode CommandType = "set_attendance_mode"
)

// Command is one inbound mutation request. Type selects the operation;
// the remaining fields are populated per type. Absent optional fields
// (scheduled_at, location) mean "clear".
type Command struct {
	Type           CommandType          `json:"type"`
	ID             types.TalkID         `json:"id,omitempty"`
	Title          string               `json:"title,omitempty"`
	Description    string               `json:"description,omitempty"`
	ScheduledAt    *time.Time           `json:"scheduled_at,omitempty"`
	Duration       types.Seconds        `json:"duration,omitempty"`
	Location       *string              `json:"location,omitempty"`
	AttendanceMode types.AttendanceMode `json:"attendance_mode,omitempty"`
}

// DecodeCommand parses an inbound command message. A syntactically valid
// message with an unknown type is returned with ok=false so callers can
// ignore it without treating it as a protocol violation.
func DecodeCommand(data []byte) (Command, bool, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, false, fmt.Errorf("failed to decode command: %w", err)
	}
	switch c.Type {
	case CmdAddTalk, CmdRemoveTalk, CmdUpdateTitle, CmdUpdateDescription,
		CmdUpdateScheduledAt, CmdUpdateDuration, CmdUpdateLocation,
		CmdToggleNerd, CmdToggleNoob, CmdSetAttendanceMode:
		return c, true, nil
	default:
		return c, false, nil
	}
}

// UpdateType tags an outbound broadcast event.
type UpdateType string

const (
	UpdUsers                UpdateType = "users"
	UpdAddTalk              UpdateType = "add_talk"
	UpdRemoveTalk           UpdateType = "remove_talk"
	UpdUpdateTitle          UpdateType = "update_title"
	UpdUpdateDescription    UpdateType = "update_description"
	UpdUpdateScheduledAt    UpdateType = "update_scheduled_at"
	UpdUpdateDuration       UpdateType = "update_duration"
	UpdUpdateLocation       UpdateType = "update_location"
	UpdUpdateNerds          UpdateType = "update_nerds"
	UpdUpdateNoobs          UpdateType = "update_noobs"
	UpdUpdateAttendanceMode UpdateType = "update_attendance_mode"
)

// UserRef is the public projection of a user, safe to broadcast.
type UserRef struct {
	ID             types.UserID         `json:"id"`
	Name           string               `json:"name"`
	Team           string               `json:"team"`
	AttendanceMode types.AttendanceMode `json:"attendance_mode"`
}

// Directory maps user IDs to their public projections.
type Directory map[types.UserID]UserRef

// DirectoryOf projects the full user collection.
func DirectoryOf(users types.Users) Directory {
	dir := make(Directory, len(users))
	for id, user := range users {
		dir[id] = UserRef{
			ID:             user.ID,
			Name:           user.Name,
			Team:           user.Team,
			AttendanceMode: user.AttendanceMode,
		}
	}
	return dir
}

// Update is one broadcast delta. Type selects the variant; every other
// field is populated per variant and omitted otherwise.
type Update struct {
	Type           UpdateType           `json:"type"`
	Users          Directory            `json:"users,omitempty"`
	Talk           *types.Talk          `json:"talk,omitempty"`
	ID             types.TalkID         `json:"id,omitempty"`
	Title          string               `json:"title,omitempty"`
	Description    string               `json:"description,omitempty"`
	ScheduledAt    *time.Time           `json:"scheduled_at,omitempty"`
	Duration       types.Seconds        `json:"duration,omitempty"`
	Location       *string              `json:"location,omitempty"`
	Members        []types.UserID       `json:"members,omitempty"`
	UserID         types.UserID         `json:"user_id,omitempty"`
	AttendanceMode types.AttendanceMode `json:"attendance_mode,omitempty"`
}

// UsersUpdate carries the full user directory; broadcast whenever the
// directory changes for everyone (registration, reconciled user edits).
func UsersUpdate(users types.Users) Update {
	return Update{Type: UpdUsers, Users: DirectoryOf(users)}
}

// AddTalkUpdate carries a full talk snapshot.
func AddTalkUpdate(talk types.Talk) Update {
	return Update{Type: UpdAddTalk, Talk: &talk}
}

// RemoveTalkUpdate announces deletion of a talk.
func RemoveTalkUpdate(id types.TalkID) Update {
	return Update{Type: UpdRemoveTalk, ID: id}
}

// TitleUpdate announces a changed title.
func TitleUpdate(id types.TalkID, title string) Update {
	return Update{Type: UpdUpdateTitle, ID: id, Title: title}
}

// DescriptionUpdate announces a changed description.
func DescriptionUpdate(id types.TalkID, description string) Update {
	return Update{Type: UpdUpdateDescription, ID: id, Description: description}
}

// ScheduledAtUpdate announces a changed (or cleared) schedule slot.
func ScheduledAtUpdate(id types.TalkID, at *time.Time) Update {
	return Update{Type: UpdUpdateScheduledAt, ID: id, ScheduledAt: at}
}

// DurationUpdate announces a changed duration.
func DurationUpdate(id types.TalkID, duration types.Seconds) Update {
	return Update{Type: UpdUpdateDuration, ID: id, Duration: duration}
}

// LocationUpdate announces a changed (or cleared) location.
func LocationUpdate(id types.TalkID, location *string) Update {
	return Update{Type: UpdUpdateLocation, ID: id, Location: location}
}

// NerdsUpdate carries the complete nerd set after a membership change.
func NerdsUpdate(id types.TalkID, members types.UserIDSet) Update {
	return Update{Type: UpdUpdateNerds, ID: id, Members: members.Sorted()}
}

// NoobsUpdate carries the complete noob set after a membership change.
func NoobsUpdate(id types.TalkID, members types.UserIDSet) Update {
	return Update{Type: UpdUpdateNoobs, ID: id, Members: members.Sorted()}
}

// AttendanceModeUpdate announces a user's changed attendance mode.
func AttendanceModeUpdate(userID types.UserID, mode types.AttendanceMode) Update {
	return Update{Type: UpdUpdateAttendanceMode, UserID: userID, AttendanceMode: mode}
}

// Encode serializes any outbound message.
func Encode(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}
