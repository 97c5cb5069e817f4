package cli

import (
	"fmt"
	"io"

	"github.com/RicardoMLopes/wsh/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Key         keyFlags
	Quantity    string
	Volume      string
	UserID      string
	OperatorID  string
	Position    string
	Description string
	ClassCode   string
	Damaged     bool
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record a put-away movement",
		Long: `Record one confirmed movement against an aggregate. The quantity is split
into standard, LPS and undeclared entries by comparing it with what was
declared for the key.

Example:
  wsh-putawayctl submit --reference R1 --waybill W1 --part P1 --qty 12 --user op7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	opts.Key.register(cmd, true)
	cmd.Flags().StringVar(&opts.Quantity, "qty", "", "incoming quantity (required)")
	cmd.Flags().StringVar(&opts.Volume, "volume", "0", "volume count")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "contributing user id")
	cmd.Flags().StringVar(&opts.OperatorID, "operator", "", "operator id")
	cmd.Flags().StringVar(&opts.Position, "position", "", "storage position")
	cmd.Flags().StringVar(&opts.Description, "description", "", "item description")
	cmd.Flags().StringVar(&opts.ClassCode, "class", "", "classification code")
	cmd.Flags().BoolVar(&opts.Damaged, "damaged", false, "the whole movement is damaged")
	_ = cmd.MarkFlagRequired("qty")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	qty, err := decimal.NewFromString(opts.Quantity)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid --qty", err)
	}
	vol, err := decimal.NewFromString(opts.Volume)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid --volume", err)
	}

	s, err := opts.openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	f := opts.formatter(cmd)
	res, err := s.svc.Submit(cmd.Context(), service.MovementSubmission{
		Reference:   opts.Key.Reference,
		Waybill:     opts.Key.Waybill,
		PartNumber:  opts.Key.PartNumber,
		Description: opts.Description,
		Position:    opts.Position,
		ClassCode:   opts.ClassCode,
		IncomingQty: qty,
		Volume:      vol,
		OperatorID:  opts.OperatorID,
		UserID:      opts.UserID,
		Damaged:     opts.Damaged,
	})
	if err != nil {
		return f.Fail("submit", err)
	}
	f.VerboseLog("submission %s created=%t", res.SubmissionID, res.Created)

	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "aggregate %d: submission %s\n", res.AggregateID, res.SubmissionID)
		for _, e := range res.Entries {
			fmt.Fprintf(w, "  entry %d  %-10s %s\n", e.ID, e.Label, e.Quantity)
		}
		printAggregateTotals(w, res.Aggregate)
	})
}
