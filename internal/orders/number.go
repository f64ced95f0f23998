package orders

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const orderNumberPrefix = "ORD-"

// NewOrderNumber builds a human-readable order number that is neither
// sequential nor guessable: a timestamp tail for locality plus a random
// suffix for collision resistance. Uniqueness is enforced by the DB index.
func NewOrderNumber(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return orderNumberPrefix + ts + suffix
}
