package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerline/statements/internal/config"
	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/extract"
	"github.com/ledgerline/statements/internal/logger"
)

// newExtractCommand runs the extraction pipeline on a local file and prints
// the result as JSON. Useful for checking a statement before uploading it.
func newExtractCommand() *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract transactions from a statement file and print them as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], currency)
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "default currency when the file has none")
	return cmd
}

func runExtract(cmd *cobra.Command, path, currency string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if currency == "" {
		currency = cfg.DefaultCurrency
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}

	var extracted *domain.ExtractedData
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		extracted, err = extract.FromCSV(string(data), extract.CSVOptions{
			DefaultCurrency: currency,
			DateOrder:       cfg.DateOrder,
		})
	case ".pdf", ".png", ".jpg", ".jpeg", ".webp":
		log := logger.New()
		extractor, buildErr := buildExtractor(cfg, log)
		if buildErr != nil {
			return buildErr
		}
		mimeType := "application/pdf"
		switch ext {
		case ".png":
			mimeType = "image/png"
		case ".webp":
			mimeType = "image/webp"
		case ".jpg", ".jpeg":
			mimeType = "image/jpeg"
		}
		pipeline := extract.NewAIPipeline(extractor, log)
		extracted, err = pipeline.FromFile(cmd.Context(), data, extract.AIOptions{
			DefaultCurrency: currency,
			DateOrder:       cfg.DateOrder,
			MaxPages:        cfg.MaxPDFPages,
			MIMEType:        mimeType,
		})
	default:
		return fmt.Errorf("unsupported file type %q; expected .csv, .pdf, or an image", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(extracted)
}
