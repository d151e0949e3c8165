//go:build pact
// +build pact

package consumer_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"

	pacttest "github.com/Apurer/order-ledger/test/pact"
)

const timestampPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`

func orderBody(id matchers.Matcher) matchers.Map {
	return matchers.Map{
		"id":          id,
		"orderNumber": matchers.Term("PED-20240309140507", `^PED-\d{14}$`),
		"clientId":    matchers.Like(pacttest.ExistingClientID),
		"lines": matchers.EachLike(matchers.Map{
			"productId":  matchers.Like(pacttest.ExistingProductID),
			"quantity":   matchers.Like(2),
			"unitPrice":  matchers.Term(pacttest.ProductPrice, `^\d+\.\d{2,}$`),
			"lineAmount": matchers.Term("300.00", `^\d+\.\d{2,}$`),
		}, 1),
		"totalAmount": matchers.Term("300.00", `^\d+\.\d{2,}$`),
		"status":      matchers.Term("IN_PREPARATION", `^(RECEIVED|REJECTED|ACCEPTED|IN_PREPARATION|DELIVERED|CANCELLED)$`),
		"version":     matchers.Like(2),
		"createdAt":   matchers.Term("2024-03-09T14:05:07Z", timestampPattern),
	}
}

func TestPortalConsumesOrderLedger(t *testing.T) {
	pact := newPortalPact(t)

	pact.AddInteraction().
		Given(pacttest.StateOrdersBaseline).
		UponReceiving("a request to place an order").
		WithRequest("POST", "/api/orders", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.Header("Idempotency-Key", matchers.Like("portal-checkout-1"))
			b.JSONBody(matchers.Map{
				"clientId": matchers.Like(pacttest.ExistingClientID),
				"notes":    matchers.Like("pact delivery"),
				"lines": matchers.EachLike(matchers.Map{
					"productId": matchers.Like(pacttest.ExistingProductID),
					"quantity":  matchers.Like(2),
				}, 1),
			})
		}).
		WillRespondWith(http.StatusCreated, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(orderBody(matchers.Like("7c2f4b8e-55d1-4d3c-9a61-0e4d2b9f1a11")))
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderExists).
		UponReceiving("a request for an existing order").
		WithRequest("GET", "/api/orders/"+pacttest.ExistingOrderID).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(orderBody(matchers.S(pacttest.ExistingOrderID)))
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderMissing).
		UponReceiving("a request for a missing order").
		WithRequest("GET", "/api/orders/"+pacttest.MissingOrderID).
		WillRespondWith(http.StatusNotFound, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/problem+json"))
			b.JSONBody(matchers.Map{
				"type":   matchers.Like("/problems/not-found"),
				"title":  matchers.Like("Resource Not Found"),
				"status": matchers.Like(http.StatusNotFound),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateClientPending).
		UponReceiving("a request for a client's pending amount").
		WithRequest("GET", fmt.Sprintf("/api/orders/clients/%d/pending-amount", pacttest.ExistingClientID)).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"clientId":      matchers.Like(pacttest.ExistingClientID),
				"pendingAmount": matchers.Term("300.00", `^\d+\.\d{2,}$`),
			})
		})

	err := pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		baseURL := mockBaseURL(config)

		payload, err := json.Marshal(pacttest.ExampleCreateOrderPayload())
		if err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodPost, baseURL+"/api/orders", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "portal-checkout-1")
		if err := expectStatus(http.DefaultClient.Do(req))(http.StatusCreated); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if err := expectStatus(http.Get(baseURL + "/api/orders/" + pacttest.ExistingOrderID))(http.StatusOK); err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if err := expectStatus(http.Get(baseURL + "/api/orders/" + pacttest.MissingOrderID))(http.StatusNotFound); err != nil {
			return fmt.Errorf("get missing order: %w", err)
		}
		pendingURL := fmt.Sprintf("%s/api/orders/clients/%d/pending-amount", baseURL, pacttest.ExistingClientID)
		if err := expectStatus(http.Get(pendingURL))(http.StatusOK); err != nil {
			return fmt.Errorf("pending amount: %w", err)
		}
		return nil
	})
	require.NoError(t, err)
}

func newPortalPact(t *testing.T) *pactconsumer.V2HTTPMockProvider {
	t.Helper()
	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.PortalName,
		Provider: pacttest.LedgerName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)
	return pact
}

func expectStatus(resp *http.Response, err error) func(int) error {
	return func(want int) error {
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != want {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		}
		return nil
	}
}
