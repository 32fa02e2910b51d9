package shipping

import (
	"strings"

	"github.com/mstgnz/storegate/provider"
)

// StatusFromDescription classifies a free-text (Turkish) carrier event such as
// "Dağıtıma Çıkarıldı" or "TESLİM EDİLDİ". Unrecognized movements count as in transit.
func StatusFromDescription(description string) TrackingStatus {
	folded := provider.NormalizeName(description)
	switch {
	case folded == "":
		return StatusUnknown
	case strings.Contains(folded, "edilemedi"), strings.Contains(folded, "bulunamadi"), strings.Contains(folded, "hasar"):
		return StatusException
	case strings.Contains(folded, "teslim edildi"):
		return StatusDelivered
	case strings.Contains(folded, "dagitim"):
		return StatusOutForDelivery
	case strings.Contains(folded, "iade"):
		return StatusReturned
	case strings.Contains(folded, "kabul"):
		return StatusCreated
	default:
		return StatusInTransit
	}
}
