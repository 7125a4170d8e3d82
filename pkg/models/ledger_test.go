package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sqr/internal/money"
)

func TestStatusOf(t *testing.T) {
	agreed := money.FromUnits(1000000)

	assert.Equal(t, StatusOpen, StatusOf(agreed, 0))
	assert.Equal(t, StatusPartiallyPaid, StatusOf(agreed, money.FromUnits(400000)))
	assert.Equal(t, StatusSettled, StatusOf(agreed, agreed))
	assert.Equal(t, StatusOverpaid, StatusOf(agreed, money.FromUnits(1200000)))
	assert.Equal(t, StatusSettled, StatusOf(0, 0))
}

func TestOutstanding(t *testing.T) {
	p := PayrollEntry{Agreed: money.FromUnits(1000000), Paid: money.FromUnits(1200000)}
	assert.Equal(t, money.FromUnits(-200000), p.Outstanding())
	assert.Equal(t, StatusOverpaid, p.Status())

	s := SaleEntry{Gross: money.FromUnits(500), Collected: money.FromUnits(200)}
	assert.Equal(t, money.FromUnits(300), s.Outstanding())
	assert.Equal(t, StatusPartiallyPaid, s.Status())
}
