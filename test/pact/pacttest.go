//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Participants. The ledger is the provider of the portal's contract and the
// consumer of the registry and catalog contracts.
const (
	LedgerName   = "order-ledger-api"
	PortalName   = "order-portal"
	RegistryName = "client-registry"
	CatalogName  = "catalog"
)

const (
	StateOrdersBaseline = "orders baseline"
	StateOrderExists    = "order pact-order-301 is in preparation"
	StateOrderMissing   = "no order with id pact-order-404"
	StateClientPending  = "client 1 has an order in preparation"

	StateClientExists   = "client 1 exists with a 10000 credit ceiling"
	StateClientMissing  = "no client with id 404"
	StateUserOwnsClient = "user 7 owns clients 1 and 2"
	StateProductExists  = "product 7 exists priced 150.00 with stock"
	StateProductMissing = "no product with id 404"
)

const (
	ExistingOrderID = "pact-order-301"
	MissingOrderID  = "pact-order-404"

	ExistingClientID  int64 = 1
	MissingClientID   int64 = 404
	OwningUserID      int64 = 7
	ExistingProductID int64 = 7
	MissingProductID  int64 = 404
)

// ProductPrice is the catalog price the provider states agree on.
const ProductPrice = "150.00"

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for a consumer/provider pair.
func PactFile(t testing.TB, consumer, provider string) string {
	t.Helper()
	return filepath.Join(PactDir(t), consumer+"-"+provider+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleCreateOrderPayload is the portal's create request.
func ExampleCreateOrderPayload() map[string]any {
	return map[string]any{
		"clientId": ExistingClientID,
		"notes":    "pact delivery",
		"lines": []map[string]any{
			{"productId": ExistingProductID, "quantity": 2},
		},
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
