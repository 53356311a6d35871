package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-consensus/internal/leadfile"
	"github.com/sells-group/lead-consensus/internal/model"
)

var (
	runInput   string
	runOutput  string
	runFormat  string
	runLead    model.Lead
	runSummary bool
	runSources []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a lead file or a single lead",
	Long:  "Loads leads from a CSV, XLSX or JSON file (or a single lead from flags), runs them through collection, judgment, consensus and scoring, and prints the batch result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		leads, err := runLeads(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "run", lookupEnv, runSources...)
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Pipeline.Run(ctx, leads)
		zap.L().Info("run complete",
			zap.String("batch_id", result.ID),
			zap.Int("total", result.Stats.Total),
			zap.Int("succeeded", result.Stats.Succeeded),
			zap.Int("failed", result.Stats.Failed),
			zap.Int("cache_hits", result.Stats.CacheHits),
			zap.Float64("cost_usd", result.Stats.CostUSD),
		)

		var out any = result
		if runSummary {
			out = result.Stats
		}

		w := cmd.OutOrStdout()
		if runOutput != "" {
			f, err := os.Create(runOutput)
			if err != nil {
				return eris.Wrap(err, "run: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return writeResult(w, runFormat, out)
	},
}

// runLeads returns the leads named by --input, or the single lead built
// from the lead flags.
func runLeads(cmd *cobra.Command) ([]model.Lead, error) {
	if runInput != "" {
		return leadfile.Load(cmd.Context(), runInput)
	}
	if runLead.Name == "" && runLead.ID == "" {
		return nil, eris.New("run: --input or --id/--name/--address is required")
	}
	lead := runLead
	lead.Phone = leadfile.Clean(lead.Phone)
	lead.Email = leadfile.Clean(lead.Email)
	lead.Website = leadfile.Clean(lead.Website)
	return []model.Lead{lead}, nil
}

// writeResult encodes v as indented JSON or, for "yaml", as YAML keyed by
// the JSON field names.
func writeResult(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode result")
	}

	switch format {
	case "", "json":
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return eris.Wrap(err, "encode result")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "lead file (.csv, .tsv, .txt, .xlsx or .json)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "write the result to this file instead of stdout")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "output format: json or yaml")
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "collect only from these sources (default: all enabled)")
	runCmd.Flags().BoolVar(&runSummary, "summary", false, "print only the batch statistics")
	runCmd.Flags().StringVar(&runLead.ID, "id", "", "lead identifier")
	runCmd.Flags().StringVar(&runLead.Name, "name", "", "lead name")
	runCmd.Flags().StringVar(&runLead.Address, "address", "", "lead street address")
	runCmd.Flags().StringVar(&runLead.City, "city", "", "lead city")
	runCmd.Flags().StringVar(&runLead.State, "state", "", "lead state")
	runCmd.Flags().StringVar(&runLead.Phone, "phone", "", "known phone number")
	runCmd.Flags().StringVar(&runLead.Email, "email", "", "known email address")
	runCmd.Flags().StringVar(&runLead.Website, "website", "", "known website")
	rootCmd.AddCommand(runCmd)
}
