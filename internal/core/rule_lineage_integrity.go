package core

import (
	"context"
	"fmt"

	"kittycore/pkg/domain"
)

// LineageIntegrityRule enforces parent/offspring constraints on bred kitties.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, change := range changes {
		if change.Entity != domain.EntityKitty || change.Action != domain.ActionCreate {
			continue
		}
		child, ok := change.After.(domain.Kitty)
		if !ok || child.Parents == nil {
			continue
		}
		evaluateParents(&res, child, view)
	}

	return res, nil
}

func lineageViolation(childID domain.KittyID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityKitty,
		EntityID: fmt.Sprint(childID),
	}
}

func evaluateParents(res *domain.Result, child domain.Kitty, view domain.RuleView) {
	a, b := child.Parents.A, child.Parents.B
	if a == b {
		res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("kitty %d lists parent %d twice", child.ID, a)))
		return
	}
	var genders []domain.Gender
	for _, parentID := range []domain.KittyID{a, b} {
		if parentID == child.ID {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("kitty %d references itself as a parent", child.ID)))
			return
		}
		parent, ok := view.FindKitty(parentID)
		if !ok {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("kitty %d references missing parent %d", child.ID, parentID)))
			return
		}
		if parentID > child.ID {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("kitty %d is older than its parent %d", child.ID, parentID)))
		}
		genders = append(genders, parent.Gender())
	}
	if genders[0] == genders[1] {
		res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("kitty %d parents share gender %s", child.ID, genders[0])))
	}
}
