package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealmate/internal/model"
)

var (
	analyzeDeal string
	analyzeName string
	analyzeType string
	analyzeUser string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze an extracted document",
	Long:  "Loads extracted document text from a file, runs the full agent fan-out, and prints the terminal run report as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		text, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read document %s", args[0])
		}

		name := analyzeName
		if name == "" {
			name = filepath.Base(args[0])
		}

		doc := &model.Document{
			DealID: analyzeDeal,
			Name:   name,
			Type:   model.DocumentType(analyzeType),
			Text:   string(text),
		}
		if err := st.CreateDocument(ctx, doc); err != nil {
			return eris.Wrap(err, "create document")
		}

		snap, err := loadSnapshot(ctx, st)
		if err != nil {
			return err
		}

		zap.L().Info("starting analysis",
			zap.String("document_id", doc.ID),
			zap.String("deal_id", doc.DealID),
			zap.Int("bytes", doc.ByteSize),
		)

		orch := newOrchestrator(st, snap)
		run, err := orch.Analyze(ctx, doc.ID, analyzeUser)
		if err != nil && run == nil {
			return eris.Wrap(err, "analyze")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(run); encErr != nil {
			return encErr
		}
		return err
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDeal, "deal", "", "deal ID the document belongs to")
	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "document name (default: file basename)")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", string(model.DocumentTypeCIM), "document type (cim, spreadsheet, transcript)")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user ID for model selection")
	_ = analyzeCmd.MarkFlagRequired("deal")
	rootCmd.AddCommand(analyzeCmd)
}
