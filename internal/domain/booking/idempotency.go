package booking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// IdempotencyKey fingerprints a creation request so a double submission
// inside the 24h window collapses onto the original booking. Participant
// order must not change the key.
func IdempotencyKey(organizerID, coachID uint, start time.Time, participantIDs []uint) string {
	ids := make([]uint, len(participantIDs))
	copy(ids, participantIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}

	raw := fmt.Sprintf("%d|%d|%d|%s", organizerID, coachID, start.UTC().Unix(), strings.Join(parts, ","))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
