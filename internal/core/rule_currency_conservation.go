package core

import (
	"context"
	"fmt"

	"kittycore/pkg/domain"
)

// CurrencyConservationRule checks that the ledger still sums to the total
// issuance whenever a transaction touched balances.
func CurrencyConservationRule() domain.Rule {
	return currencyConservationRule{}
}

type currencyConservationRule struct{}

func (currencyConservationRule) Name() string { return "currency_conservation" }

func (currencyConservationRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityBalance {
			touched = true
			break
		}
	}
	if !touched {
		return domain.Result{}, nil
	}
	var total domain.Balance
	for _, entry := range view.ListBalances() {
		next := total + entry.Amount
		if next < total {
			return violation("currency_conservation", "ledger sum overflows"), nil
		}
		total = next
	}
	if issuance := view.TotalIssuance(); total != issuance {
		return violation("currency_conservation", fmt.Sprintf("ledger holds %d but issuance is %d", total, issuance)), nil
	}
	return domain.Result{}, nil
}

func violation(rule, message string) domain.Result {
	return domain.Result{Violations: []domain.Violation{{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityBalance,
	}}}
}
