package services

import (
	"github.com/shopspring/decimal"
)

const (
	DefaultFreeJobQuota = 20
	moneyPlaces         = 2
)

// DefaultCommissionRate is the platform's cut of a job after the free quota.
var DefaultCommissionRate = decimal.RequireFromString("0.07")

// CommissionPolicy carries the knobs CalculateCommission is evaluated with.
type CommissionPolicy struct {
	Rate      decimal.Decimal
	FreeQuota int
}

func DefaultCommissionPolicy() CommissionPolicy {
	return CommissionPolicy{Rate: DefaultCommissionRate, FreeQuota: DefaultFreeJobQuota}
}

// CalculateCommission returns the commission owed on a job and whether it falls inside
// the cleaner's free quota. completedJobsCount is the count before this job. Amounts are
// rounded to centimes.
func CalculateCommission(
	jobPrice decimal.Decimal,
	completedJobsCount int,
	freeQuota int,
	rate decimal.Decimal,
) (decimal.Decimal, bool) {
	if completedJobsCount < freeQuota {
		return decimal.Zero, true
	}
	return jobPrice.Mul(rate).Round(moneyPlaces), false
}

// Calculate applies the policy to one job.
func (p CommissionPolicy) Calculate(
	jobPrice decimal.Decimal,
	completedJobsCount int,
) (decimal.Decimal, bool) {
	return CalculateCommission(jobPrice, completedJobsCount, p.FreeQuota, p.Rate)
}
