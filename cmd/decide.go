package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltmesh/bessd/config"
	"github.com/voltmesh/bessd/core/engine"
	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/infra/logger"
)

var snapshotPath string

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate one snapshot file and print the decision",
	RunE:  decideOnce,
}

func init() {
	decideCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "snapshot JSON file (telemetry, grid, market)")
	if err := decideCmd.MarkFlagRequired("snapshot"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(decideCmd)
}

type snapshotFile struct {
	Telemetry model.SystemTelemetry `json:"telemetry"`
	Grid      model.GridState       `json:"grid"`
	Market    model.MarketData      `json:"market"`
}

func decideOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	eng := engine.New(logger.New("decide-command"))
	res := eng.DecideAt(engine.Input{
		Telemetry:   snap.Telemetry,
		Grid:        snap.Grid,
		Market:      snap.Market,
		Constraints: cfg.Constraints,
		Config:      cfg.Optimization,
	}, time.Now())

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
