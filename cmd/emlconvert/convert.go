package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.io/infrasutra/emlconvert/internal/config"
	"github.io/infrasutra/emlconvert/internal/convert"
)

func newConvertCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var (
		formats string
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "convert [files...]",
		Short: "Convert .eml, .txt or .mbox files without starting a server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *cfg
			if formats != "" {
				local.ExportFormats = strings.Split(formats, ",")
			}
			converter, err := newConverter(local, nil, nil, logger)
			if err != nil {
				return err
			}

			uploads := make([]convert.Upload, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				uploads = append(uploads, convert.Upload{Name: filepath.Base(path), Data: data})
			}

			result, err := converter.Convert(cmd.Context(), convert.Request{Uploads: uploads})
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, format := range result.Formats {
				path := filepath.Join(outDir, format.FileName())
				data := result.Outputs[format]
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s\t%s\n", path, humanize.Bytes(uint64(len(data))))
			}
			fmt.Fprintf(out, "%d records from %s\n", len(result.Records), result.DisplayName)
			for _, name := range result.Skipped {
				fmt.Fprintf(out, "skipped %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&formats, "format", "f", strings.Join(cfg.ExportFormats, ","), "comma separated formats: xlsx, pdf, csv or all")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the exported files")
	cmd.Flags().StringVar(&cfg.DocTitle, "title", cfg.DocTitle, "PDF document title")
	cmd.Flags().StringVar(&cfg.DocBrand, "brand", cfg.DocBrand, "PDF header brand")
	return cmd
}
