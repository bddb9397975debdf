package booking

import (
	"crypto/rand"
	"fmt"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode builds a booking reference like TIKA-260401-K7QD: a fixed
// prefix, the booking date as yymmdd, and a 4-character random suffix.
// Collisions across a day are possible; callers retry on duplicate.
func NewCode(now time.Time) string {
	suffix := make([]byte, 4)
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		nano := now.UnixNano()
		for i := range raw {
			raw[i] = byte(nano >> (8 * i))
		}
	}
	for i, b := range raw {
		suffix[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("TIKA-%s-%s", now.Format("060102"), string(suffix))
}
