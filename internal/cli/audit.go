package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var key keyFlags

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Replay the ledger of one aggregate against its stored totals",
		Long: `Recompute revised, standard, LPS, undeclared and breakdown totals from the
active ledger entries and compare them with the stored aggregate. Exits 1
when any field drifts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			f := rootOpts.formatter(cmd)
			res, err := s.svc.Audit(cmd.Context(), key.AggregateKey)
			if err != nil {
				return f.Fail("audit", err)
			}
			if err := f.Success(res, func(w io.Writer) {
				state := "consistent"
				if !res.Consistent {
					state = "DRIFT"
				}
				fmt.Fprintf(w, "%s: %s (%d active, %d voided entries)\n", key.AggregateKey, state, res.ActiveEntries, res.VoidedEntries)
				for _, d := range res.Drift {
					fmt.Fprintf(w, "  %-14s stored %s, ledger %s\n", d.Field, d.Stored, d.Replayed)
				}
			}); err != nil {
				return err
			}
			if !res.Consistent {
				return NewExitError(ExitFailure, "ledger drift on "+key.AggregateKey.String())
			}
			return nil
		},
	}
	key.register(cmd, true)
	return cmd
}
