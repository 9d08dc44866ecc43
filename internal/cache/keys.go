package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(ownerID string, docID uuid.UUID) string {
	return fmt.Sprintf("genjob:%s:%s", ownerID, docID)
}

func RateLimitKey(ownerID string) string {
	return fmt.Sprintf("ratelimit:%s", ownerID)
}

func CertsKey(certsURL string) string {
	return fmt.Sprintf("firebase:certs:%s", certsURL)
}
