package core

import (
	"context"
	"fmt"

	"kittycore/pkg/domain"
)

// ListingIntegrityRule blocks commits that leave a price entry for a kitty the
// registry does not hold.
func ListingIntegrityRule() domain.Rule {
	return listingIntegrityRule{}
}

type listingIntegrityRule struct{}

func (listingIntegrityRule) Name() string { return "listing_integrity" }

func (listingIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityListing || change.After == nil {
			continue
		}
		listing, ok := change.After.(domain.Listing)
		if !ok {
			continue
		}
		if _, exists := view.FindKitty(listing.KittyID); !exists {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "listing_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("listing references missing kitty %d", listing.KittyID),
				Entity:   domain.EntityListing,
				EntityID: fmt.Sprint(listing.KittyID),
			})
		}
	}
	return res, nil
}

// ListingClearedOnTransferRule blocks commits where a kitty changed owner but
// its price entry survived.
func ListingClearedOnTransferRule() domain.Rule {
	return listingClearedRule{}
}

type listingClearedRule struct{}

func (listingClearedRule) Name() string { return "listing_cleared_on_transfer" }

func (listingClearedRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityKitty || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Kitty)
		after, okAfter := change.After.(domain.Kitty)
		if !okBefore || !okAfter || before.Owner == after.Owner {
			continue
		}
		if listing, listed := view.FindListing(after.ID); listed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "listing_cleared_on_transfer",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("kitty %d changed owner while listed at %d", after.ID, listing.Price),
				Entity:   domain.EntityListing,
				EntityID: fmt.Sprint(after.ID),
			})
		}
	}
	return res, nil
}
