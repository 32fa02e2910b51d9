package shipping

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// ShipmentKey builds a carrier reference of the form <prefix><unixMillis><random6>,
// e.g. YK1772445600000042137
func ShipmentKey(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d%06d", prefix, now.UnixMilli(), rand.IntN(1_000_000))
}
