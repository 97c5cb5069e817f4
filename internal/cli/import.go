package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RicardoMLopes/wsh/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// lineFile on-disk layout of a shipment-line import
type lineFile struct {
	Lines []service.ShipmentLine `json:"lines" yaml:"lines"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml|file.json>",
		Short: "Declare expected shipment lines",
		Long: `Declare expected shipment lines from a YAML or JSON file. The file holds a
top-level "lines" list:

  lines:
    - reference: R1
      waybill: W1
      partNumber: P1
      declaredQty: "10"

New keys are inserted, keys with nothing confirmed yet are updated, and the
rest are ignored. One invalid line rejects the whole file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLineFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read "+args[0], err)
			}

			s, err := rootOpts.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			f := rootOpts.formatter(cmd)
			f.VerboseLog("importing %d lines from %s", len(lines), args[0])
			res, err := s.svc.ImportShipmentLines(cmd.Context(), lines)
			if err != nil {
				return f.Fail("import", err)
			}
			return f.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "%d lines: %d inserted, %d updated, %d ignored\n",
					res.Total, res.Inserted, res.Updated, res.Ignored)
			})
		},
	}
}

func readLineFile(path string) ([]service.ShipmentLine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lf lineFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&lf)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&lf)
	default:
		return nil, fmt.Errorf("unsupported file extension %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return lf.Lines, nil
}
