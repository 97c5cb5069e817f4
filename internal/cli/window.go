package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	var key keyFlags

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Close the process window of a reference/waybill pair",
		Long: `Stamp processEnd on every non-voided aggregate of the pair. Success is
reported only when at least one aggregate was updated.`,
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
			res, err := s.svc.CompleteProcessWindow(cmd.Context(), key.Reference, key.Waybill)
			if err != nil {
				return f.Fail("complete", err)
			}
			if err := f.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "completed %s/%s: %d aggregates\n", key.Reference, key.Waybill, res.RowsAffected)
			}); err != nil {
				return err
			}
			if !res.Success {
				return NewExitError(ExitFailure, "no aggregate matched "+key.Reference+"/"+key.Waybill)
			}
			return nil
		},
	}
	key.register(cmd, false)
	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var key keyFlags

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reopen the process window of a reference/waybill pair",
		Long: `Clear processEnd on the aggregates and ledger entries of the pair so the
pair can be worked again.`,
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
			res, err := s.svc.ResetProcessWindow(cmd.Context(), key.Reference, key.Waybill)
			if err != nil {
				return f.Fail("reset", err)
			}
			return f.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "reset %s/%s: %d aggregates, %d entries\n",
					key.Reference, key.Waybill, res.AggregatesCleared, res.EntriesCleared)
			})
		},
	}
	key.register(cmd, false)
	return cmd
}
