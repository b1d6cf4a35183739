package core

import (
	"fmt"

	"kittycore/pkg/domain"
)

// marketTx is the slice of a transaction the marketplace needs.
type marketTx interface {
	domain.Registry
	domain.Listings
	domain.Currency
}

func setPrice(tx marketTx, caller AccountID, id KittyID, price *Balance) ([]Event, error) {
	if _, ok := tx.FindOwnedKitty(caller, id); !ok {
		return nil, domain.WithMetadata(domain.CodeNotOwner, fmt.Sprintf("account %d does not own kitty %d", caller, id), map[string]string{
			"caller":   fmt.Sprint(caller),
			"kitty_id": fmt.Sprint(id),
		})
	}
	var stored *Balance
	if price != nil {
		if err := tx.SetPrice(id, *price); err != nil {
			return nil, err
		}
		stored = domain.PriceOf(*price)
	} else {
		tx.ClearPrice(id)
	}
	return []Event{domain.KittyPriceUpdated{Owner: caller, KittyID: id, Price: stored}}, nil
}

func transfer(tx marketTx, from, to AccountID, id KittyID) ([]Event, error) {
	if err := tx.TransferKitty(from, to, id); err != nil {
		return nil, err
	}
	if from == to {
		return nil, nil
	}
	tx.ClearPrice(id)
	return []Event{domain.KittyTransferred{From: from, To: to, KittyID: id}}, nil
}

func buy(tx marketTx, buyer, owner AccountID, id KittyID, maxPrice Balance) ([]Event, error) {
	if buyer == owner {
		return nil, domain.WithMetadata(domain.CodeBuyFromSelf, fmt.Sprintf("account %d cannot buy its own kitty %d", buyer, id), map[string]string{
			"buyer":    fmt.Sprint(buyer),
			"kitty_id": fmt.Sprint(id),
		})
	}
	price, listed := tx.Price(id)
	if !listed {
		return nil, domain.WithMetadata(domain.CodeNotForSale, fmt.Sprintf("kitty %d is not listed", id), map[string]string{
			"kitty_id": fmt.Sprint(id),
		})
	}
	if price > maxPrice {
		return nil, domain.WithMetadata(domain.CodePriceTooLow, fmt.Sprintf("kitty %d is listed at %d above maximum %d", id, price, maxPrice), map[string]string{
			"kitty_id":  fmt.Sprint(id),
			"price":     fmt.Sprint(price),
			"max_price": fmt.Sprint(maxPrice),
		})
	}
	if err := tx.Transfer(buyer, owner, price); err != nil {
		return nil, err
	}
	if err := tx.TransferKitty(owner, buyer, id); err != nil {
		return nil, err
	}
	tx.ClearPrice(id)
	return []Event{domain.KittySold{Owner: owner, Buyer: buyer, KittyID: id, Price: price}}, nil
}
