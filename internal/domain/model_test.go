package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTotals(t *testing.T) {
	order := &Order{
		Lines: []OrderLine{
			{ProductID: 10, Qty: 2, PriceUnit: 3},
			{ProductID: 11, Qty: 1, PriceUnit: 2.5},
		},
	}
	assert.Equal(t, 8.5, order.LinesTotal())
	assert.Equal(t, 8.5, order.DisplayTotal(), "no server total yet, recompute from lines")

	server := 9.35 // server may price differently (taxes, promos)
	order.AmountTotal = &server
	assert.Equal(t, 9.35, order.DisplayTotal())

	var nilOrder *Order
	assert.Equal(t, 0.0, nilOrder.LinesTotal())
	assert.Equal(t, 0.0, nilOrder.DisplayTotal())
	assert.False(t, nilOrder.Persisted())
}

func TestOrderPersisted(t *testing.T) {
	assert.False(t, (&Order{}).Persisted())
	assert.True(t, (&Order{ID: 7}).Persisted())
}

func TestTableAvailable(t *testing.T) {
	assert.True(t, Table{Status: TableAvailable}.Available())
	assert.True(t, Table{}.Available(), "a missing status means no linked order")
	assert.False(t, Table{Status: TableOccupied}.Available())
	assert.False(t, Table{Status: TablePayment}.Available())
}
