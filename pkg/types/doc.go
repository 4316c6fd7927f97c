/*
Package types defines the persisted entities of the talk scheduling server
and the static authorization tables derived from them.

# Entities

Team:
  - Fixed reference set of team names, provisioned from teams.json
  - Users and talks may only reference an existing team name

User:
  - Registered participant with a unique (name, team) pair
  - Carries an argon2id password hash and a role list
  - Roles are editor and scheduler; both may be held at once

Talk:
  - Proposed or scheduled talk with creator, title, description,
    optional schedule slot, duration, and optional location
  - Nerds (presenters) and noobs (attendees) are disjoint signup sets

Token:
  - Opaque bearer token mapping to a user ID and an expiry timestamp
  - Multiple live tokens per user are allowed (multi-device)

# Authorization tables

Roles expand to capabilities through a static table:

	editor    → delete_other_talks, change_other_titles,
	            change_other_descriptions, change_other_durations
	scheduler → change_other_scheduled_ats, change_other_durations,
	            change_other_locations

The table is never persisted. Capabilities are derived from the live role
list on each login and relogin, so role edits take effect on the next
relogin without re-issuing tokens.

# JSON shapes

Collections serialize to the stable on-disk document shapes the disk
reconciler diffs against: teams as an array of names, users and talks as
arrays of records sorted by ID, tokens as an object keyed by token.
Durations persist as whole seconds and signup sets as sorted ID arrays so
the files stay editable by hand.
*/
package types
