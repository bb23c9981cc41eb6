package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/logger"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/parser"
	"TrinoEventPump/internal/watcher"
)

var (
	replayQueryID  string
	replayCatalogs bool
)

type replayOutput struct {
	Queries   []models.QueryView `json:"queries"`
	Databases []models.Catalog   `json:"databases,omitempty"`
	Summary   models.Summary     `json:"summary"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <file.jsonl>...",
	Short: "Ingest event files once and print the derived query views as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		// stdout занят JSON-выводом, логи идут в stderr
		rootLogger, err := logger.InitZapTo(&cfg.Logging, zapcore.AddSync(os.Stderr))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Flush(rootLogger)
		lg := rootLogger.Named("replay")

		c := newCore(rootLogger, cfg.Catalog)
		p := parser.NewParser(nil)
		for _, path := range args {
			n, err := watcher.ReadFile(cmd.Context(), path, p, lg, c.correlator.Ingest)
			if err != nil {
				return err
			}
			lg.Info("Файл прочитан", zap.String("file", path), zap.Int("events", n))
		}

		out := replayOutput{Summary: c.correlator.Summary()}
		if replayQueryID != "" {
			view, ok := c.correlator.View(replayQueryID)
			if !ok {
				return fmt.Errorf("query %s not found", replayQueryID)
			}
			out.Queries = []models.QueryView{view}
		} else {
			out.Queries = c.correlator.Views()
		}
		if replayCatalogs {
			out.Databases = c.directory.All()
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayQueryID, "query", "q", "", "print only this query id")
	replayCmd.Flags().BoolVar(&replayCatalogs, "catalogs", false, "also print discovered databases")
	rootCmd.AddCommand(replayCmd)
}
