package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// The version suffix allows the normalization to change without old
// digests ever comparing equal to new ones.
const (
	DomainDocument = "confsync/document/v1"
	DomainEntity   = "confsync/entity/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentDigest fingerprints a merged entity set shaped as
// {section: {natural id: entity}}. Two sets that differ only in key order,
// duplicate set members or Unicode normalization yield the same digest.
func DocumentDigest(sections Object) (string, error) {
	canonical, err := MarshalCanonical(sections)
	if err != nil {
		return "", fmt.Errorf("DocumentDigest: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// EntityHash computes the import hash stored alongside a row and used to
// skip upserts of unchanged entities.
func EntityHash(entity Object) (string, error) {
	canonical, err := MarshalCanonical(entity)
	if err != nil {
		return "", fmt.Errorf("EntityHash: %w", err)
	}
	return hashWithDomain(DomainEntity, canonical), nil
}

// MustEntityHash is like EntityHash but panics on error.
// Objects built only from String, Int, Bool, Array and Object never fail.
func MustEntityHash(entity Object) string {
	h, err := EntityHash(entity)
	if err != nil {
		panic(err)
	}
	return h
}

// DomainFile prefixes digests of raw feed files.
const DomainFile = "confsync/file/v1"

// FileHash fingerprints raw file content.
func FileHash(data []byte) string {
	return hashWithDomain(DomainFile, data)
}
