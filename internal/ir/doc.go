// Package ir provides the constrained value model used to fingerprint
// conference data.
//
// Entities are projected into Objects, serialized as RFC 8785 canonical JSON
// and hashed with a domain-separated SHA-256. Two documents carrying the same
// entities therefore produce the same digest regardless of field order or
// array position of set-valued fields.
//
// Key constraints:
//   - No float types; instants are int64 epoch milliseconds
//   - No null; absent optional fields are omitted
//   - Strings are NFC normalized at the serialization boundary
//
// ir imports nothing internal.
package ir
