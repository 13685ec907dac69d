package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OrderNumberFromID derives the human-readable order number shown on
// invoices and shipping labels. Purely deterministic: the same order id
// always yields the same number.
func OrderNumberFromID(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("SW-%s", strings.ToUpper(hex[:12]))
}
