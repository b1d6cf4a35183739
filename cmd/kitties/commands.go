package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"kittycore/internal/adapters/eventarchive"
	"kittycore/internal/core"
	"kittycore/internal/platform/config"
	"kittycore/pkg/domain"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts appOptions
	root := &cobra.Command{
		Use:           "kitties",
		Short:         "Create, breed and trade kitties",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.trace, "trace", false, "write one JSON span per operation to stderr")
	root.PersistentFlags().BoolVar(&opts.stats, "stats", false, "print operation counters to stderr on exit")

	root.AddCommand(
		newCreateCmd(&opts),
		newBreedCmd(&opts),
		newSetPriceCmd(&opts),
		newTransferCmd(&opts),
		newBuyCmd(&opts),
		newShowCmd(&opts),
		newBalanceCmd(&opts),
		newListingsCmd(&opts),
		newEventsCmd(&opts),
	)
	return root
}

// withApp loads configuration and runs fn against a freshly opened app.
func withApp(cmd *cobra.Command, opts *appOptions, fn func(*app) error) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr(), *opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func newCreateCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <account>",
		Short: "Mint a kitty with fresh DNA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				kitty, _, err := a.svc.Create(cmd.Context(), caller)
				if err != nil {
					return err
				}
				return writeOutcome(cmd.OutOrStdout(), a, &kitty)
			})
		},
	}
}

func newBreedCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "breed <account> <kitty-a> <kitty-b>",
		Short: "Mint a child of two kitties of different gender",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			idA, err := parseKittyID(args[1])
			if err != nil {
				return err
			}
			idB, err := parseKittyID(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				child, _, err := a.svc.Breed(cmd.Context(), caller, idA, idB)
				if err != nil {
					return err
				}
				return writeOutcome(cmd.OutOrStdout(), a, &child)
			})
		},
	}
}

func newSetPriceCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-price <account> <kitty> [price]",
		Short: "List a kitty for sale, or clear its listing when price is omitted",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			id, err := parseKittyID(args[1])
			if err != nil {
				return err
			}
			var price *domain.Balance
			if len(args) == 3 {
				p, err := parseBalance(args[2])
				if err != nil {
					return err
				}
				price = &p
			}
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.svc.SetPrice(cmd.Context(), caller, id, price); err != nil {
					return err
				}
				return writeOutcome(cmd.OutOrStdout(), a, nil)
			})
		},
	}
}

func newTransferCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <kitty>",
		Short: "Give a kitty to another account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			to, err := parseAccount(args[1])
			if err != nil {
				return err
			}
			id, err := parseKittyID(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.svc.Transfer(cmd.Context(), from, to, id); err != nil {
					return err
				}
				return writeOutcome(cmd.OutOrStdout(), a, nil)
			})
		},
	}
}

func newBuyCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <buyer> <owner> <kitty> <max-price>",
		Short: "Buy a listed kitty for at most max-price",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			owner, err := parseAccount(args[1])
			if err != nil {
				return err
			}
			id, err := parseKittyID(args[2])
			if err != nil {
				return err
			}
			maxPrice, err := parseBalance(args[3])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.svc.Buy(cmd.Context(), buyer, owner, id, maxPrice); err != nil {
					return err
				}
				return writeOutcome(cmd.OutOrStdout(), a, nil)
			})
		},
	}
}

func newShowCmd(opts *appOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "show [kitty]",
		Short: "Print one kitty, the kitties of --owner, or every kitty",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					id, err := parseKittyID(args[0])
					if err != nil {
						return err
					}
					kitty, ok := a.svc.KittyByID(id)
					if !ok {
						return fmt.Errorf("kitty %d does not exist", id)
					}
					return writeJSON(out, viewOf(a.svc, kitty))
				}
				kitties := a.svc.Kitties()
				if owner != "" {
					account, err := parseAccount(owner)
					if err != nil {
						return err
					}
					kitties = a.svc.KittiesOf(account)
				}
				for _, k := range kitties {
					if err := writeJSON(out, viewOf(a.svc, k)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only kitties held by this account")
	return cmd
}

func newBalanceCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Print an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				return writeJSON(cmd.OutOrStdout(), domain.AccountBalance{Account: account, Amount: a.svc.Balance(account)})
			})
		},
	}
}

func newListingsCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "listings",
		Short: "Print every kitty listed for sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				for _, l := range a.svc.Listings() {
					if err := writeJSON(cmd.OutOrStdout(), l); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newEventsCmd(opts *appOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print archived events in publication order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if a.archive == nil {
					return errors.New("event archive disabled; set KITTYCORE_BLOB_DRIVER")
				}
				records, err := eventarchive.List(cmd.Context(), a.archive, domain.EventKind(kind))
				if err != nil {
					return err
				}
				for _, rec := range records {
					if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only events of this kind, e.g. kitty_sold")
	return cmd
}

type kittyView struct {
	ID        domain.KittyID   `json:"id"`
	Owner     domain.AccountID `json:"owner"`
	DNA       string           `json:"dna"`
	Gender    domain.Gender    `json:"gender"`
	Parents   *domain.Parents  `json:"parents,omitempty"`
	Price     *domain.Balance  `json:"price,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func viewOf(svc *core.Service, k domain.Kitty) kittyView {
	v := kittyView{
		ID:        k.ID,
		Owner:     k.Owner,
		DNA:       k.DNA.String(),
		Gender:    k.Gender(),
		Parents:   k.Parents,
		CreatedAt: k.CreatedAt,
	}
	if price, ok := svc.Price(k.ID); ok {
		v.Price = &price
	}
	return v
}

type eventLine struct {
	Event domain.EventKind `json:"event"`
	Data  domain.Event     `json:"data"`
}

// writeOutcome prints the minted kitty, when there is one, followed by the
// events the operation emitted.
func writeOutcome(w io.Writer, a *app, minted *domain.Kitty) error {
	if minted != nil {
		if err := writeJSON(w, viewOf(a.svc, *minted)); err != nil {
			return err
		}
	}
	for _, ev := range a.events.Events() {
		if err := writeJSON(w, eventLine{Event: ev.Kind(), Data: ev}); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func parseAccount(s string) (domain.AccountID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account %q", s)
	}
	return domain.AccountID(v), nil
}

func parseKittyID(s string) (domain.KittyID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid kitty id %q", s)
	}
	return domain.KittyID(v), nil
}

func parseBalance(s string) (domain.Balance, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return domain.Balance(v), nil
}
