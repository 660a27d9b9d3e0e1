// Package dedupe computes content hashes for transactions and flags
// extracted batches against the persisted store.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ledgerline/statements/internal/normalize"
)

// Hash returns the canonical content hash of a transaction. It is a pure
// function of (date, amount, normalized description): two independent
// extractions of the same real-world transaction converge to the same hash
// regardless of extraction method.
func Hash(date string, amount int64, description string) string {
	if len(date) > 10 {
		date = date[:10]
	}
	payload := fmt.Sprintf("%s|%d|%s", date, amount, normalize.Description(description))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
