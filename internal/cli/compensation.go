package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/RicardoMLopes/wsh/internal/service"

	"github.com/spf13/cobra"
)

type compensateFunc func(ctx context.Context, svc service.PutawayService, id int64) (*service.CompensationResult, error)

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return newCompensationCommand(rootOpts, "cancel", "Void an active ledger entry",
		`Void an active ledger entry and subtract its quantity from the aggregate.
Cancelling an entry that is already voided is rejected.`,
		func(ctx context.Context, svc service.PutawayService, id int64) (*service.CompensationResult, error) {
			return svc.Cancel(ctx, id)
		})
}

// NewReverseCommand creates the reverse command.
func NewReverseCommand(rootOpts *RootOptions) *cobra.Command {
	return newCompensationCommand(rootOpts, "reverse", "Re-activate a voided ledger entry",
		`Re-activate a voided ledger entry and add its quantity back to the aggregate.
Reversing an active entry is rejected.`,
		func(ctx context.Context, svc service.PutawayService, id int64) (*service.CompensationResult, error) {
			return svc.Reverse(ctx, id)
		})
}

func newCompensationCommand(rootOpts *RootOptions, use, short, long string, fn compensateFunc) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <entry-id>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitFailure, "invalid entry id", err)
			}

			s, err := rootOpts.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			f := rootOpts.formatter(cmd)
			res, err := fn(cmd.Context(), s.svc, id)
			if err != nil {
				return f.Fail(use, err)
			}
			return f.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "entry %d is now %s\n", res.EntryID, res.Status)
				printAggregateTotals(w, res.Aggregate)
			})
		},
	}
}
