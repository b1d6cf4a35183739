package core

import "kittycore/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(ListingIntegrityRule())
	engine.Register(ListingClearedOnTransferRule())
	engine.Register(LineageIntegrityRule())
	engine.Register(CurrencyConservationRule())
	return engine
}
