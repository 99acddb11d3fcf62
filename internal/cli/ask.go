package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/api"
	"github.com/spf13/cobra"
)

var (
	askDocument  string
	askQuestions []string
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions about one document",
	Long: `Downloads the document at --document, builds a private index for it and
answers every -q question in order. PDF, DOCX, email and plain text are supported.`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askDocument, "document", "d", "", "http(s) URL of the document")
	askCmd.Flags().StringArrayVarP(&askQuestions, "question", "q", nil, "question to answer, repeatable")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answers as JSON")
	_ = askCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	req, err := adapter.ToRagRequest(api.RunRequest{Documents: askDocument, Questions: askQuestions}, utils.GetNewUUID(), cfg.Pipeline.MaxQuestions)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	service, stop, err := newService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init backends: %w", err)
	}
	if stop != nil {
		defer stop()
	}

	result, err := service.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", req.RunId, err)
	}
	if len(result.Answers) != len(req.Questions) {
		return errors.New("answer count does not match question count")
	}

	if askJSON {
		data, err := json.MarshalIndent(adapter.ToRunResponse(result.Answers), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answers: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	for i, q := range req.Questions {
		cmd.Printf("Q%d: %s\nA%d: %s\n\n", i+1, q, i+1, result.Answers[i])
	}
	return nil
}
