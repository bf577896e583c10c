package handshake

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

// EncodeUID renders uid the way AUTH EXTERNAL carries it: the decimal
// digits, each hex-encoded as an ASCII byte. 1000 becomes "31303030".
func EncodeUID(uid uint32) string {
	return hex.EncodeToString([]byte(strconv.FormatUint(uint64(uid), 10)))
}

// ParseUID reverses EncodeUID. Malformed hex or a non-decimal payload is
// an error.
func ParseUID(s string) (uint32, error) {
	digits, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidUID, s, err)
	}
	uid, err := strconv.ParseUint(string(digits), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidUID, s, err)
	}
	return uint32(uid), nil
}

// CurrentUID returns the user id of this process.
func CurrentUID() uint32 {
	return uint32(os.Getuid())
}
