package core

import "kittycore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	AccountID          = domain.AccountID
	KittyID            = domain.KittyID
	Balance            = domain.Balance
	DNA                = domain.DNA
	Kitty              = domain.Kitty
	Parents            = domain.Parents
	Listing            = domain.Listing
	AccountBalance     = domain.AccountBalance
	Event              = domain.Event
	EventSink          = domain.EventSink
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityKitty   = domain.EntityKitty
	EntityListing = domain.EntityListing
	EntityBalance = domain.EntityBalance
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
