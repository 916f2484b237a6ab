package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		completed int
		amount    string
		free      bool
	}{
		{name: "last free job", price: "100", completed: 19, amount: "0", free: true},
		{name: "first paid job", price: "100", completed: 20, amount: "7", free: false},
		{name: "brand new cleaner", price: "350", completed: 0, amount: "0", free: true},
		{name: "rounds to centimes", price: "123.45", completed: 25, amount: "8.64", free: false},
		{name: "two hundred dirham job", price: "200", completed: 25, amount: "14.00", free: false},
		{name: "zero priced job", price: "0", completed: 40, amount: "0", free: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, free := CalculateCommission(
				decimal.RequireFromString(tt.price),
				tt.completed,
				DefaultFreeJobQuota,
				DefaultCommissionRate,
			)

			assert.True(t, amount.Equal(decimal.RequireFromString(tt.amount)), amount.String())
			assert.Equal(t, tt.free, free)
		})
	}
}

func TestCalculateCommission_CustomPolicy(t *testing.T) {
	policy := CommissionPolicy{Rate: decimal.RequireFromString("0.10"), FreeQuota: 0}

	amount, free := policy.Calculate(decimal.NewFromInt(80), 0)

	assert.False(t, free)
	assert.True(t, amount.Equal(decimal.NewFromInt(8)))
}
