// Package handler turns the sections of a conference document into
// entities and store mutations.
//
// Each section (rooms, sessions, speakers, ...) has one keyed table. Parsing
// a section fills the table by natural key; when an id repeats, the later
// entry wins. A Set groups one table per section so a whole document can be
// parsed into a staging Set and merged into the running one only when every
// section parsed.
//
// Emission follows two strategies:
//
//   - Small reference tables (rooms, blocks, tags, cards, announcements, map)
//     are emptied and refilled.
//   - Speakers, sessions and videos are upserted row by row. Rows whose
//     import hash matches the stored one are skipped and rows absent from
//     the Set are deleted.
//
// Each present section is a snapshot of its table. A section missing from
// every document of a cycle is not written at all, and sessions resolve
// references into such sections against the stored rows.
package handler
