package ical

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mopad/mopad/pkg/types"
)

// ContentType is the media type for rendered calendars.
const ContentType = "text/calendar; charset=utf-8"

const timestampFormat = "20060102T150405Z"

// Render produces an iCalendar document with one VEVENT per scheduled
// talk. Unscheduled talks are skipped. If filter is non-nil only talks
// the given user signed up for (as nerd or noob) are included. Events
// are emitted in ascending talk ID order so the output is stable.
func Render(talks types.Talks, users types.Users, now time.Time, filter *types.UserID) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//HULKs//mopad//EN\r\n")
	b.WriteString("NAME:MOPAD\r\n")
	b.WriteString("X-WR-CALNAME:MOPAD\r\n")
	b.WriteString("X-WR-CALDESC:Moderated Organization PAD (powerful, agile, distributed)\r\n")

	stamp := now.UTC().Format(timestampFormat)

	ids := make([]types.TalkID, 0, len(talks))
	for id := range talks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		talk := talks[id]
		if filter != nil && !talk.Nerds.Contains(*filter) && !talk.Noobs.Contains(*filter) {
			continue
		}
		if talk.ScheduledAt == nil {
			continue
		}
		writeEvent(&b, &talk, users, stamp)
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func writeEvent(b *strings.Builder, talk *types.Talk, users types.Users, stamp string) {
	start := talk.ScheduledAt.UTC()
	end := start.Add(talk.Duration.Duration())

	b.WriteString("BEGIN:VEVENT\r\n")
	writeProperty(b, "UID", itoa(uint64(talk.ID)))
	writeProperty(b, "DTSTAMP", stamp)
	writeProperty(b, "DTSTART", start.Format(timestampFormat))
	writeProperty(b, "DTEND", end.Format(timestampFormat))
	writeProperty(b, "SUMMARY", stripNewlines(talk.Title))
	writeProperty(b, "DESCRIPTION", stripNewlines(talk.Description))
	if talk.Location != nil {
		writeProperty(b, "LOCATION", strings.NewReplacer("\r", "", ";", "").Replace(*talk.Location))
	}
	writeAttendees(b, talk.Nerds, users, "CHAIR")
	writeAttendees(b, talk.Noobs, users, "REQ-PARTICIPANT")
	b.WriteString("END:VEVENT\r\n")
}

// writeAttendees emits one ATTENDEE line per signed-up user; nerds chair
// the event, noobs are required participants. Users that vanished from
// the directory are skipped.
func writeAttendees(b *strings.Builder, members types.UserIDSet, users types.Users, role string) {
	for _, id := range members.Sorted() {
		user, ok := users[id]
		if !ok {
			continue
		}
		b.WriteString("ATTENDEE;ROLE=" + role + ";PARTSTAT=ACCEPTED;CN=" +
			sanitize(user.Name) + " (" + sanitize(user.Team) + ")" +
			":MAILTO:user" + itoa(uint64(id)) + "@mopad\r\n")
	}
}

func writeProperty(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(":")
	b.WriteString(value)
	b.WriteString("\r\n")
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

func sanitize(s string) string {
	return strings.NewReplacer(";", "", "\r", "", "\n", "").Replace(s)
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
