package service

import (
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/types"
)

// universalCommands need no permission at all: anyone may create a talk,
// toggle their own signups, or change their own attendance mode.
var universalCommands = map[protocol.CommandType]struct{}{
	protocol.CmdAddTalk:           {},
	protocol.CmdToggleNerd:        {},
	protocol.CmdToggleNoob:        {},
	protocol.CmdSetAttendanceMode: {},
}

// requiredCapability maps each gated command to the capability that
// allows it on talks the session did not create.
var requiredCapability = map[protocol.CommandType]types.Capability{
	protocol.CmdRemoveTalk:        types.CapDeleteOtherTalks,
	protocol.CmdUpdateTitle:       types.CapChangeOtherTitles,
	protocol.CmdUpdateDescription: types.CapChangeOtherDescriptions,
	protocol.CmdUpdateScheduledAt: types.CapChangeOtherScheduledAts,
	protocol.CmdUpdateDuration:    types.CapChangeOtherDurations,
	protocol.CmdUpdateLocation:    types.CapChangeOtherLocations,
}

// Authorized is the pure allow/deny decision for one command. Capability
// and ownership are each sufficient on their own, never combined. Callers
// must treat a denial as a silent no-op, not a reportable error: replying
// would leak which talks exist and who may edit them.
func Authorized(session *Session, cmd protocol.Command, talks types.Talks) bool {
	if _, ok := universalCommands[cmd.Type]; ok {
		return true
	}
	if capability, ok := requiredCapability[cmd.Type]; ok && session.Capabilities.Contains(capability) {
		return true
	}
	talk, ok := talks[cmd.ID]
	if !ok {
		return false
	}
	return talk.Creator == session.UserID
}
