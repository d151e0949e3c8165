package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
)

type normalizedCreateOrderInput struct {
	ClientID int64            `json:"clientId"`
	SiteID   *int64           `json:"siteId"`
	Notes    string           `json:"notes"`
	Lines    []normalizedLine `json:"lines"`
}

type normalizedLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// FingerprintCreateOrder hashes the creation payload, excluding the idempotency key.
// Line order is significant because lines keep request order.
func FingerprintCreateOrder(input types.CreateOrderInput) (string, error) {
	normalized := normalizedCreateOrderInput{
		ClientID: input.ClientID,
		SiteID:   input.SiteID,
		Notes:    strings.TrimSpace(input.Notes),
		Lines:    make([]normalizedLine, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		normalized.Lines = append(normalized.Lines, normalizedLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
