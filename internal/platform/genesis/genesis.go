// Package genesis loads initial balance endowments from YAML and applies them
// to a fresh registry.
package genesis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"kittycore/internal/core"
	"kittycore/pkg/domain"

	"gopkg.in/yaml.v3"
)

// Genesis is the decoded genesis file.
//
//	balances:
//	  - account: 200
//	    amount: 500
type Genesis struct {
	Balances []Endowment `yaml:"balances"`
}

// Endowment credits amount to account.
type Endowment struct {
	Account domain.AccountID `yaml:"account"`
	Amount  domain.Balance   `yaml:"amount"`
}

// Load reads and parses the file at path.
func Load(path string) (Genesis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("read genesis %s: %w", path, err)
	}
	g, err := Parse(b)
	if err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a genesis document. Unknown fields and repeated accounts are
// rejected.
func Parse(data []byte) (Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
		return Genesis{}, fmt.Errorf("decode: %w", err)
	}
	seen := make(map[domain.AccountID]struct{}, len(g.Balances))
	for _, e := range g.Balances {
		if _, dup := seen[e.Account]; dup {
			return Genesis{}, fmt.Errorf("account %d listed twice", e.Account)
		}
		seen[e.Account] = struct{}{}
	}
	return g, nil
}

// Apply deposits the endowments when the registry holds no kitties and no
// currency has been issued. The freshness check and every deposit share one
// transaction, so a rejected entry leaves the registry fresh for a retry. It
// reports whether anything was applied.
func Apply(ctx context.Context, svc *core.Service, g Genesis) (bool, error) {
	if len(g.Balances) == 0 {
		return false, nil
	}
	balances := make([]domain.AccountBalance, 0, len(g.Balances))
	for _, e := range g.Balances {
		balances = append(balances, domain.AccountBalance{Account: e.Account, Amount: e.Amount})
	}
	applied, _, err := svc.Endow(ctx, balances)
	return applied, err
}
