package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agenthands/padi/internal/core"
	"github.com/agenthands/padi/internal/core/engine"
	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/server"
)

var (
	diagnoseSymptoms  []int64
	diagnoseCertainty map[string]string
	diagnoseKB        string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run the inference engine on a symptom selection",
	Long: `Run forward chaining and the certainty factor fallback on the given
symptoms and print the result as JSON. Nothing is written to history.

With --kb the knowledge base is read from a YAML seed file instead of the
configured store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		certainty, err := parseCertainty(diagnoseCertainty)
		if err != nil {
			return err
		}
		in := model.DiagnosisInput{SymptomIDs: diagnoseSymptoms, Certainty: certainty}
		eng := engine.New(cfg.Engine.ToEngine())

		var out model.Outcome
		if diagnoseKB != "" {
			seed, err := kb.LoadSeedFile(diagnoseKB)
			if err != nil {
				return err
			}
			out, err = eng.Evaluate(seed.Snapshot(), in)
			if err != nil {
				return err
			}
		} else {
			ctx := cmd.Context()
			backend, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer backend.Close(ctx)

			out, err = eng.Diagnose(ctx, backend, in)
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(server.NewDiagnosisResponse(&core.DiagnoseResult{Outcome: out}))
	},
}

func init() {
	diagnoseCmd.Flags().Int64SliceVar(&diagnoseSymptoms, "symptoms", nil, "selected symptom IDs, e.g. 1,2,3")
	diagnoseCmd.Flags().StringToStringVar(&diagnoseCertainty, "certainty", nil, "per-symptom certainty, e.g. 1=0.8,2=0.6")
	diagnoseCmd.Flags().StringVar(&diagnoseKB, "kb", "", "evaluate against this YAML seed file instead of the store")
	_ = diagnoseCmd.MarkFlagRequired("symptoms")
	rootCmd.AddCommand(diagnoseCmd)
}

func parseCertainty(raw map[string]string) (map[int64]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int64]float64, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid symptom ID %q in --certainty", k)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid certainty %q for symptom %d", v, id)
		}
		out[id] = f
	}
	return out, nil
}
