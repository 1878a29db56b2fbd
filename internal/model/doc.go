// Package model defines the conference entities exchanged in data documents
// and the user-scoped rows kept beside them.
//
// Conference entities carry their wire names as JSON tags; the same types are
// read by the client handlers and written by the extractor. Each entity
// projects itself into an ir.Object for digests and import hashes.
package model
