package registry

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRunID returns "run_<unix-ms>_<9-char base36 random>". Uniqueness is
// only required within a process lifetime, so math/rand/v2's unseeded
// global source is sufficient.
func NewRunID() string {
	buf := make([]byte, 9)
	for i := range buf {
		buf[i] = base36Alphabet[rand.IntN(len(base36Alphabet))]
	}
	return fmt.Sprintf("run_%d_%s", time.Now().UnixMilli(), buf)
}
