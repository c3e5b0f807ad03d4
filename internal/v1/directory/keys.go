package directory

import (
	"fmt"

	"github.com/sqids/sqids-go"
)

// roomKeyMinLength keeps even the first keys from looking like counters.
const roomKeyMinLength = 3

// KeyCodec turns the directory's monotonic room counter into short opaque
// room keys. Encoding is reversible, though nothing in the core decodes.
type KeyCodec struct {
	sqids *sqids.Sqids
}

// NewKeyCodec builds a codec over the configured alphabet.
func NewKeyCodec(alphabet string) (*KeyCodec, error) {
	s, err := sqids.New(sqids.Options{
		Alphabet:  alphabet,
		MinLength: roomKeyMinLength,
	})
	if err != nil {
		return nil, fmt.Errorf("directory: bad room key alphabet: %w", err)
	}
	return &KeyCodec{sqids: s}, nil
}

// Encode maps a counter value to a room key.
func (c *KeyCodec) Encode(pk uint64) (string, error) {
	key, err := c.sqids.Encode([]uint64{pk})
	if err != nil {
		return "", fmt.Errorf("directory: encode room key: %w", err)
	}
	return key, nil
}

// Decode maps a room key back to its counter value. Returns false when the
// key does not decode to exactly one value.
func (c *KeyCodec) Decode(key string) (uint64, bool) {
	nums := c.sqids.Decode(key)
	if len(nums) != 1 {
		return 0, false
	}
	return nums[0], true
}
