// Package preferences stores per-user notification preferences and answers
// the single question the delivery pipeline asks: may this notification
// type go out on this channel for this user?
//
// Preferences have three layers: a master switch per channel, a per-type
// enable flag, and per-type channel overrides. All three must allow for a
// delivery to proceed. Users without stored preferences get defaults
// (everything on except SMS); a storage failure during resolution denies
// the delivery rather than risking an unwanted send.
package preferences
