package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/saad749/rheem/internal/config"
	"github.com/saad749/rheem/internal/learner"
	"github.com/saad749/rheem/internal/learner/execlog"
)

var (
	learnLogPath  string
	learnMinConf  float64
	learnSampling float64
)

func init() {
	learnCmd.Flags().StringVar(&learnLogPath, "log", "", "execution log to train on")
	_ = learnCmd.MarkFlagRequired("log")
	learnCmd.Flags().Float64Var(&learnMinConf, "min-cardinality-confidence", 0, "drop records with any cardinality confidence below this")
	learnCmd.Flags().Float64Var(&learnSampling, "sampling", 1.0, "fraction of qualifying records to keep")
	rootCmd.AddCommand(learnCmd)
}

var learnCmd = &cobra.Command{
	Use:   "rheem-learn",
	Short: "fit load-profile coefficients from a job's execution log",
	RunE:  runLearn,
}

// demoVariableTemplates are the load-profile templates the demo pipeline's
// operator classes are fitted against: a per-cardinality linear term plus a
// constant coefficient per operator class.
var demoVariableTemplates = map[string]string{
	"source":  "${a} * out0 + ${b}",
	"map":     "${a} * in0 + ${b}",
	"filter":  "${a} * in0 + ${b}",
	"collect": "${a} * in0 + ${b}",
}

func runLearn(cmd *cobra.Command, args []string) error {
	reader, closeFn, err := execlog.OpenReader(learnLogPath)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}
	records = learner.FilterTrainingSet(records, learnMinConf, learnSampling, nil)

	vs, err := learner.NewVariableSpace(demoVariableTemplates, []string{"local"})
	if err != nil {
		return err
	}

	cfg := learner.LoadGAConfig(config.New())
	best, err := learner.Learn(context.Background(), records, vs, cfg)
	if err != nil {
		return err
	}
	return learner.Emit(os.Stdout, best)
}
