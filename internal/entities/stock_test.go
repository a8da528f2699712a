package entities_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velumlabs/fulfillment/internal/entities"
)

func newTestStock(t *testing.T, quantity int) *entities.Stock {
	t.Helper()
	stock, err := entities.NewStock("sku-1", "wh-main", quantity, "tenant-1")
	require.NoError(t, err)
	return stock
}

func TestNewStock(t *testing.T) {
	stock := newTestStock(t, 100)
	assert.Equal(t, 100, stock.Quantity)
	assert.Equal(t, 0, stock.Reserved)
	assert.Equal(t, 100, stock.Available())

	_, err := entities.NewStock("", "wh-main", 10, "tenant-1")
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)

	_, err = entities.NewStock("sku-1", "wh-main", -1, "tenant-1")
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)
}

func TestStock_Reserve(t *testing.T) {
	testCases := []struct {
		name     string
		quantity int
		reserved int
		qty      int
		wantErr  error
	}{
		{name: "ok", quantity: 100, reserved: 0, qty: 30},
		{name: "exactly available", quantity: 100, reserved: 60, qty: 40},
		{name: "over availability", quantity: 100, reserved: 80, qty: 30, wantErr: entities.ErrInsufficientStock},
		{name: "zero quantity", quantity: 100, qty: 0, wantErr: entities.ErrInvalidArgument},
		{name: "negative quantity", quantity: 100, qty: -5, wantErr: entities.ErrInvalidArgument},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stock := newTestStock(t, tc.quantity)
			stock.Reserved = tc.reserved

			err := stock.Reserve(tc.qty)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.reserved, stock.Reserved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.reserved+tc.qty, stock.Reserved)
			assert.Equal(t, tc.quantity, stock.Quantity)
		})
	}
}

func TestStock_ReleaseReservation(t *testing.T) {
	stock := newTestStock(t, 100)
	require.NoError(t, stock.Reserve(30))

	assert.ErrorIs(t, stock.ReleaseReservation(31), entities.ErrInvalidRelease)
	assert.ErrorIs(t, stock.ReleaseReservation(0), entities.ErrInvalidArgument)

	require.NoError(t, stock.ReleaseReservation(30))
	assert.Equal(t, 0, stock.Reserved)
	assert.Equal(t, 100, stock.Available())
}

// Reserve then ReleaseReservation of the same quantity restores availability.
func TestStock_ReserveReleaseRoundTrip(t *testing.T) {
	stock := newTestStock(t, 50)
	before := stock.Available()

	require.NoError(t, stock.Reserve(20))
	assert.Equal(t, before-20, stock.Available())

	require.NoError(t, stock.ReleaseReservation(20))
	assert.Equal(t, before, stock.Available())
}

// Decrease debits on-hand quantity and leaves the reservation untouched:
// after Reserve(30) and Decrease(30) the entry holds quantity=70,
// reserved=30, available=40. Consuming a reservation is release + decrease.
func TestStock_DecreaseKeepsReservation(t *testing.T) {
	stock := newTestStock(t, 100)

	require.NoError(t, stock.Reserve(30))
	assert.Equal(t, 70, stock.Available())

	require.NoError(t, stock.Decrease(30))
	assert.Equal(t, 70, stock.Quantity)
	assert.Equal(t, 30, stock.Reserved)
	assert.Equal(t, 40, stock.Available())
}

func TestStock_Decrease(t *testing.T) {
	stock := newTestStock(t, 100)
	stock.Reserved = 80

	assert.ErrorIs(t, stock.Decrease(21), entities.ErrInsufficientStock)
	assert.ErrorIs(t, stock.Decrease(0), entities.ErrInvalidArgument)

	require.NoError(t, stock.Decrease(20))
	assert.Equal(t, 80, stock.Quantity)
	assert.Equal(t, 0, stock.Available())
}

func TestStock_Increase(t *testing.T) {
	stock := newTestStock(t, 10)

	require.NoError(t, stock.Increase(15))
	assert.Equal(t, 25, stock.Quantity)

	assert.ErrorIs(t, stock.Increase(0), entities.ErrInvalidArgument)
}

func TestStock_UpdateQuantity(t *testing.T) {
	stock := newTestStock(t, 100)
	require.NoError(t, stock.Reserve(40))

	require.NoError(t, stock.UpdateQuantity(10))
	assert.Equal(t, 10, stock.Quantity)
	// Reserved is not adjusted; availability may go negative and callers
	// guard that themselves.
	assert.Equal(t, 40, stock.Reserved)
	assert.Equal(t, -30, stock.Available())

	assert.ErrorIs(t, stock.UpdateQuantity(-1), entities.ErrInvalidArgument)
}

// Random reserve/release/decrease/increase sequences: whenever an operation's
// own precondition held at call time, the invariants 0 <= reserved <= quantity
// and available >= 0 hold afterwards, and rejected operations change nothing.
func TestStock_InvariantProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 100; n++ {
		stock := newTestStock(t, rng.Intn(200)+1)

		for m := 0; m < 50; m++ {
			qty := rng.Intn(60) + 1
			prevQuantity, prevReserved := stock.Quantity, stock.Reserved

			var err error
			switch rng.Intn(4) {
			case 0:
				err = stock.Reserve(qty)
			case 1:
				err = stock.ReleaseReservation(qty)
			case 2:
				err = stock.Decrease(qty)
			case 3:
				err = stock.Increase(qty)
			}

			if err != nil {
				require.Equal(t, prevQuantity, stock.Quantity, "failed op must not mutate")
				require.Equal(t, prevReserved, stock.Reserved, "failed op must not mutate")
				continue
			}

			require.GreaterOrEqual(t, stock.Reserved, 0)
			require.LessOrEqual(t, stock.Reserved, stock.Quantity)
			require.GreaterOrEqual(t, stock.Available(), 0)
		}
	}
}
