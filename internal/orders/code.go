package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

// codeAlphabet skips 0/O/1/I to keep codes unambiguous when read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeSuffixLen = 6

// NewOrderCode builds a human-legible order code such as
// ORD-20260829-K7M2PX. The date prefix aids support lookups; the random
// suffix disambiguates. Uniqueness is still enforced by the ux_orders_code
// index plus a bounded insert retry.
func NewOrderCode(now time.Time) string {
	buf := make([]byte, codeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform's entropy source is
		// broken; fall back to the clock rather than aborting settlement.
		return fmt.Sprintf("ORD-%s-%06d", now.UTC().Format("20060102"), now.UnixNano()%1000000)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), string(buf))
}
