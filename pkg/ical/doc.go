// Package ical renders the scheduled talks as an iCalendar (RFC 5545)
// document, optionally filtered to the talks one user signed up for.
package ical
