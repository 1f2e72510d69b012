// internal/domain/cart/slot.go
package cart

import (
	"encoding/json"
	"strings"
)

// guestSlot is the stored form of a cart in a local slot.
// MergeID identifies this guest cart when it is merged into a user cart.
type guestSlot struct {
	MergeID string `json:"mergeId,omitempty"`
	Items   []Line `json:"items"`
}

// decodeSlot parses a local slot. Absent or malformed data is an empty cart.
// A bare JSON array of lines is accepted as well as the envelope.
func decodeSlot(raw string) guestSlot {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return guestSlot{Items: []Line{}}
	}

	if strings.HasPrefix(raw, "[") {
		var items []Line
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return guestSlot{Items: []Line{}}
		}
		return guestSlot{Items: normalizeLines(items)}
	}

	var slot guestSlot
	if err := json.Unmarshal([]byte(raw), &slot); err != nil {
		return guestSlot{Items: []Line{}}
	}
	slot.Items = normalizeLines(slot.Items)
	return slot
}

func encodeSlot(slot guestSlot) (string, error) {
	if slot.Items == nil {
		slot.Items = []Line{}
	}
	b, err := json.Marshal(slot)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
