package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	ordersmemory "github.com/Apurer/order-ledger/internal/domains/orders/adapters/memory"
	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func singleLine(productID int64, quantity int) []types.LineInput {
	return []types.LineInput{{ProductID: productID, Quantity: quantity}}
}

func TestCreateOrder_PricesFromCatalogAndCommitsStock(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("12.50")
	f.catalog.prices[11] = d("3.10")
	site := int64(8)

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{
		ClientID: 1,
		SiteID:   &site,
		Notes:    "ring twice",
		Lines:    []types.LineInput{{ProductID: 10, Quantity: 2}, {ProductID: 11, Quantity: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusInPreparation, order.Status)
	require.Equal(t, "PED-20240612100000", order.OrderNumber)
	require.Equal(t, "ring twice", order.Notes)
	require.Equal(t, site, *order.SiteID)
	require.Len(t, order.Lines, 2)
	require.True(t, order.Lines[0].UnitPrice.Equal(d("12.50")))
	require.True(t, order.Lines[0].LineAmount.Equal(d("25.00")))
	require.True(t, order.Lines[1].LineAmount.Equal(d("15.50")))
	require.True(t, order.TotalAmount.Equal(d("40.50")))

	require.Len(t, f.publisher.commits, 1)
	commit := f.publisher.commits[0]
	require.Equal(t, order.ID, commit.OrderID)
	require.Equal(t, domain.StockCommitStatusExecuted, commit.Status)
	require.Equal(t, []domain.Item{{ProductID: 10, Quantity: 2}, {ProductID: 11, Quantity: 5}}, commit.Items)
	require.NotEmpty(t, commit.EventID)

	stored, err := f.repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInPreparation, stored.Status)
}

func TestCreateOrder_TotalsAlwaysMatchCatalogPrices(t *testing.T) {
	for i := 0; i < 25; i++ {
		f := newSagaFixture()
		f.registry.clients[1] = d("100000000")
		var lines []types.LineInput
		expected := decimal.Zero
		lineCount := gofakeit.Number(1, 6)
		for p := 0; p < lineCount; p++ {
			productID := int64(p + 1)
			price := decimal.NewFromFloat(gofakeit.Price(1, 500)).Round(2)
			quantity := gofakeit.Number(1, 20)
			f.catalog.prices[productID] = price
			lines = append(lines, types.LineInput{ProductID: productID, Quantity: quantity})
			expected = expected.Add(price.Mul(decimal.NewFromInt(int64(quantity))))
		}

		order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: lines})
		require.NoError(t, err)
		sum := decimal.Zero
		for idx, line := range order.Lines {
			require.True(t, line.UnitPrice.Equal(f.catalog.prices[line.ProductID]))
			require.True(t, line.LineAmount.Equal(line.UnitPrice.Mul(decimal.NewFromInt(int64(lines[idx].Quantity)))))
			sum = sum.Add(line.LineAmount)
		}
		require.True(t, order.TotalAmount.Equal(sum))
		require.True(t, order.TotalAmount.Equal(expected))
	}
}

func TestCreateOrder_ClientNotFoundRejectsAndPersists(t *testing.T) {
	f := newSagaFixture()

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 5, Lines: singleLine(10, 1)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, order.Status)
	require.NotEmpty(t, order.ID)
	require.Empty(t, f.publisher.commits)

	fetched, err := f.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(order, fetched, decimalComparer))
}

func TestCreateOrder_ClientLookupFailureParks(t *testing.T) {
	f := newSagaFixture()
	f.registry.getErr = fmt.Errorf("%w: %w", ports.ErrUpstreamUnavailable, errTimeout)

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 5, Lines: singleLine(10, 1)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, order.Status)
	require.NotEmpty(t, order.ID)
}

func TestCreateOrder_ProductNotFoundRejectsWithPartialLines(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("4")

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{
		ClientID: 1,
		Lines:    []types.LineInput{{ProductID: 10, Quantity: 2}, {ProductID: 404, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, order.Status)
	require.Len(t, order.Lines, 1)
	require.True(t, order.TotalAmount.Equal(d("8")))
	require.NoError(t, order.Validate())
}

func TestCreateOrder_ProductLookupFailureParks(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.productErr[10] = fmt.Errorf("%w: status 503", ports.ErrUpstreamUnavailable)

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, order.Status)
}

func TestCreateOrder_CreditBoundary(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		expected domain.Status
	}{
		{name: "exactly at ceiling is admitted", price: "4000", expected: domain.StatusAccepted},
		{name: "one over ceiling is rejected", price: "4001", expected: domain.StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSagaFixture()
			f.registry.clients[1] = d("10000")
			f.repo.seed(1, domain.StatusAccepted, "2500")
			f.repo.seed(1, domain.StatusInPreparation, "3500")
			f.repo.seed(1, domain.StatusDelivered, "90000")
			f.repo.seed(1, domain.StatusCancelled, "90000")
			f.repo.seed(2, domain.StatusAccepted, "90000")
			f.catalog.prices[10] = d(tc.price)
			f.catalog.short[10] = true

			order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
			require.NoError(t, err)
			require.Equal(t, tc.expected, order.Status)
		})
	}
}

func TestCreateOrder_AdmissionNeverExceedsCeiling(t *testing.T) {
	for i := 0; i < 40; i++ {
		f := newSagaFixture()
		ceiling := decimal.NewFromInt(int64(gofakeit.Number(100, 5000)))
		committed := decimal.NewFromInt(int64(gofakeit.Number(0, 5000)))
		price := decimal.NewFromInt(int64(gofakeit.Number(1, 3000)))
		f.registry.clients[1] = ceiling
		if committed.IsPositive() {
			f.repo.seed(1, domain.StatusAccepted, committed.String())
		}
		f.catalog.prices[10] = price

		pending, err := f.svc.PendingCommittedAmount(context.Background(), 1)
		require.NoError(t, err)
		order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
		require.NoError(t, err)
		if pending.Add(price).GreaterThan(ceiling) {
			require.Equal(t, domain.StatusRejected, order.Status)
		} else {
			require.NotEqual(t, domain.StatusRejected, order.Status)
		}
	}
}

func TestCreateOrder_CreditQueryFailureParks(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("100")
	f.catalog.prices[10] = d("1")
	f.repo.findErr = errTimeout

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, order.Status)
}

func TestCreateOrder_RegistryCreditPolicy(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		f := newSagaFixture()
		f.svc = NewService(f.repo, f.registry, f.catalog, f.publisher, WithCreditPolicy(NewRegistryCreditPolicy(f.registry)))
		f.registry.clients[1] = d("0")
		f.registry.creditOK = false
		f.catalog.prices[10] = d("1")

		order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
		require.NoError(t, err)
		require.Equal(t, domain.StatusRejected, order.Status)
		require.Equal(t, 1, f.registry.creditCalls)
	})
	t.Run("unavailable", func(t *testing.T) {
		f := newSagaFixture()
		f.svc = NewService(f.repo, f.registry, f.catalog, f.publisher, WithCreditPolicy(NewRegistryCreditPolicy(f.registry)))
		f.registry.clients[1] = d("0")
		f.registry.creditErr = errTimeout
		f.catalog.prices[10] = d("1")

		order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
		require.NoError(t, err)
		require.Equal(t, domain.StatusReceived, order.Status)
	})
	t.Run("approved", func(t *testing.T) {
		f := newSagaFixture()
		f.svc = NewService(f.repo, f.registry, f.catalog, f.publisher, WithCreditPolicy(NewRegistryCreditPolicy(f.registry)))
		f.registry.clients[1] = d("0")
		f.catalog.prices[10] = d("1")

		order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
		require.NoError(t, err)
		require.Equal(t, domain.StatusInPreparation, order.Status)
	})
}

func TestCreateOrder_ShortStockStaysAccepted(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("1")
	f.catalog.prices[11] = d("1")
	f.catalog.short[11] = true

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{
		ClientID: 1,
		Lines:    []types.LineInput{{ProductID: 10, Quantity: 1}, {ProductID: 11, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, order.Status)
	require.Empty(t, f.publisher.commits)
}

func TestCreateOrder_StockCheckFailureStaysAccepted(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("1")
	f.catalog.stockErr = fmt.Errorf("%w: timeout", ports.ErrUpstreamUnavailable)

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, order.Status)
	require.Empty(t, f.publisher.commits)
}

func TestCreateOrder_CommitPublishFailureStaysAccepted(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("1")
	f.publisher.commitErr = ports.ErrPublishFailed

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, order.Status)

	stored, err := f.repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, stored.Status)
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	cases := map[string]types.CreateOrderInput{
		"no lines":       {ClientID: 1},
		"zero quantity":  {ClientID: 1, Lines: singleLine(10, 0)},
		"missing client": {Lines: singleLine(10, 1)},
		"bad product":    {ClientID: 1, Lines: singleLine(0, 1)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSagaFixture()
			_, err := f.svc.CreateOrder(context.Background(), input)
			require.ErrorIs(t, err, ErrInvalidInput)
			require.Empty(t, f.repo.orders)
			require.Zero(t, f.registry.getCalls)
		})
	}
}

func TestCreateOrder_IdempotencyKeyReplays(t *testing.T) {
	store := ordersmemory.NewIdempotencyStore()
	f := newSagaFixture(WithIdempotencyStore(store))
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("2")
	input := types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 3), IdempotencyKey: "key-1"}

	first, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.registry.getCalls)
	require.Len(t, f.publisher.commits, 1)

	input.Lines = singleLine(10, 4)
	_, err = f.svc.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)
}

func TestCreateOrder_ConcurrentSameKeyRunsIntakeOnce(t *testing.T) {
	f := newSagaFixture(WithIdempotencyStore(ordersmemory.NewIdempotencyStore()))
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("50")
	entered := make(chan struct{})
	release := make(chan struct{})
	var gate sync.Once
	f.catalog.beforeGet = func(int64) {
		gate.Do(func() {
			close(entered)
			<-release
		})
	}
	ctx := context.Background()
	input := types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 2), IdempotencyKey: "k1"}

	type outcome struct {
		order *domain.Order
		err   error
	}
	first := make(chan outcome, 1)
	go func() {
		order, err := f.svc.CreateOrder(ctx, input)
		first <- outcome{order, err}
	}()
	<-entered

	_, err := f.svc.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ports.ErrIdempotencyInProgress)

	close(release)
	winner := <-first
	require.NoError(t, winner.err)
	require.Equal(t, domain.StatusInPreparation, winner.order.Status)

	replayed, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	require.Equal(t, winner.order.ID, replayed.ID)

	require.Len(t, f.publisher.commits, 1)
	require.Len(t, f.repo.orders, 1)
	pending, err := f.svc.PendingCommittedAmount(ctx, 1)
	require.NoError(t, err)
	require.True(t, pending.Equal(d("100")), pending.String())
}

func TestCreateOrder_FailedIntakeReleasesKey(t *testing.T) {
	f := newSagaFixture(WithIdempotencyStore(ordersmemory.NewIdempotencyStore()))
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("5")
	input := types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1), IdempotencyKey: "k-retry"}

	f.repo.saveErr = errTimeout
	_, err := f.svc.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, errTimeout)

	f.repo.saveErr = nil
	order, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInPreparation, order.Status)
}

func TestCreateOrder_KeyOfDeletedOrderConflicts(t *testing.T) {
	f := newSagaFixture(WithIdempotencyStore(ordersmemory.NewIdempotencyStore()))
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("5")
	input := types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 1), IdempotencyKey: "k-gone"}

	order, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteOrder(context.Background(), order.ID))

	_, err = f.svc.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)
	require.NotErrorIs(t, err, ports.ErrNotFound)
	require.Empty(t, f.repo.orders)
}

func TestCreateOrder_CancelledDuringCommitReturnsStoredOrder(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("20")
	f.publisher.onCommit = func(event domain.StockCommit) {
		_, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{
			OrderID: event.OrderID,
			Status:  string(domain.StatusCancelled),
		})
		require.NoError(t, err)
	}

	order, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 2)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, order.Status)

	require.Len(t, f.publisher.commits, 1)
	require.Len(t, f.publisher.returns, 1)
	require.Equal(t, order.ID, f.publisher.returns[0].OrderID)
}

func TestUpdateStatus_CancelInPreparationReturnsStockOnce(t *testing.T) {
	f := newSagaFixture()
	f.registry.clients[1] = d("1000")
	f.catalog.prices[10] = d("2")
	created, err := f.svc.CreateOrder(context.Background(), types.CreateOrderInput{ClientID: 1, Lines: singleLine(10, 3)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusInPreparation, created.Status)

	updated, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: created.ID, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, updated.Status)

	require.Len(t, f.publisher.returns, 1)
	ret := f.publisher.returns[0]
	require.Equal(t, created.ID, ret.OrderID)
	require.Equal(t, created.OrderNumber, ret.OrderNumber)
	require.Equal(t, domain.StockReturnReasonCancelled, ret.Reason)
	require.Equal(t, []domain.Item{{ProductID: 10, Quantity: 3}}, ret.Items)
	require.Empty(t, f.recon.recorded)
}

func TestUpdateStatus_CancelAcceptedSendsNoCompensation(t *testing.T) {
	f := newSagaFixture()
	accepted := f.repo.seed(1, domain.StatusAccepted, "10")

	updated, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: accepted.ID, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, updated.Status)
	require.Empty(t, f.publisher.returns)
}

func TestUpdateStatus_DeliverFromPreparation(t *testing.T) {
	f := newSagaFixture()
	order := f.repo.seed(1, domain.StatusInPreparation, "10")

	updated, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: order.ID, Status: "DELIVERED"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDelivered, updated.Status)
	require.Empty(t, f.publisher.returns)
}

func TestUpdateStatus_InvalidTransitionLeavesOrderUnchanged(t *testing.T) {
	for _, from := range []domain.Status{domain.StatusReceived, domain.StatusRejected, domain.StatusAccepted, domain.StatusDelivered, domain.StatusCancelled} {
		for _, to := range []string{"RECEIVED", "ACCEPTED", "IN_PREPARATION", "DELIVERED", "CONFIRMED", "SHIPPED", "REJECTED"} {
			f := newSagaFixture()
			order := f.repo.seed(1, from, "10")

			_, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: order.ID, Status: to})
			require.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", from, to)

			stored, err := f.repo.GetByID(context.Background(), order.ID)
			require.NoError(t, err)
			require.Empty(t, cmp.Diff(order, stored, decimalComparer))
		}
	}
}

func TestUpdateStatus_NotFoundAndBadStatus(t *testing.T) {
	f := newSagaFixture()
	_, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: "missing", Status: "CANCELLED"})
	require.ErrorIs(t, err, ports.ErrNotFound)

	order := f.repo.seed(1, domain.StatusAccepted, "10")
	_, err = f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: order.ID, Status: "LOST"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateStatus_ReturnPublishFailureIsRecorded(t *testing.T) {
	f := newSagaFixture()
	order := f.repo.seed(1, domain.StatusInPreparation, "10")
	f.publisher.returnErr = ports.ErrPublishFailed

	updated, err := f.svc.UpdateStatus(context.Background(), types.UpdateStatusInput{OrderID: order.ID, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, updated.Status)

	stored, err := f.repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, stored.Status)
	require.Len(t, f.recon.recorded, 1)
	require.Equal(t, order.ID, f.recon.recorded[0].OrderID)
}

func TestPendingCommittedAmount_SumsAcceptedAndInPreparation(t *testing.T) {
	f := newSagaFixture()
	f.repo.seed(1, domain.StatusAccepted, "100.10")
	f.repo.seed(1, domain.StatusInPreparation, "50")
	f.repo.seed(1, domain.StatusReceived, "7")
	f.repo.seed(1, domain.StatusDelivered, "7")
	f.repo.seed(2, domain.StatusAccepted, "7")

	amount, err := f.svc.PendingCommittedAmount(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, amount.Equal(d("150.10")), amount.String())

	amount, err = f.svc.PendingCommittedAmount(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, amount.IsZero())

	_, err = f.svc.PendingCommittedAmount(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteOrder(t *testing.T) {
	f := newSagaFixture()
	order := f.repo.seed(1, domain.StatusRejected, "1")

	require.NoError(t, f.svc.DeleteOrder(context.Background(), order.ID))
	_, err := f.svc.GetOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, ports.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteOrder(context.Background(), order.ID), ports.ErrNotFound)
}
