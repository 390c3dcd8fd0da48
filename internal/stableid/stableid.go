// Package stableid derives the deterministic identity used to track
// entities, members, and extensions across git commits (§4.1).
package stableid

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Entity returns the 40-char lowercase hex stable id for a top-level
// declaration: hex(SHA1("<language>:<module>:<name>")).
func Entity(language, module, name string) string {
	return digest(language, module, name)
}

// Extension returns the stable id for an extension target, derived
// from "<extended_type>::extension::<file>:<line>" so that multiple
// extensions of the same type coexist.
func Extension(language, module, extendedType, filePath string, startLine int) string {
	name := fmt.Sprintf("%s::extension::%s:%d", extendedType, filePath, startLine)
	return digest(language, module, name)
}

// Member returns "<entity_id>:<kind>:<name>" — derived, not hashed.
func Member(entityStableID, kind, name string) string {
	return entityStableID + ":" + kind + ":" + name
}

func digest(language, module, name string) string {
	sum := sha1.Sum([]byte(language + ":" + module + ":" + name))
	return hex.EncodeToString(sum[:])
}
