// Package pii keeps recipient addresses and message bodies out of logs while
// still allowing correlation across log lines.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the SHA-256 hash of a value for safe correlation.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// MaskRecipient hides all but the last four characters of an address or
// phone number. Inputs at or under the kept length are masked entirely.
func MaskRecipient(recipient string) string {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return ""
	}
	const keep = 4
	if len(recipient) <= keep {
		return strings.Repeat("*", len(recipient))
	}
	return strings.Repeat("*", len(recipient)-keep) + recipient[len(recipient)-keep:]
}
