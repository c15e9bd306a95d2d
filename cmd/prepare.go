package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tsg-insights/insights-cli/internal/pipeline"
	"github.com/tsg-insights/insights-cli/pkg/companieshouse"
	"github.com/tsg-insights/insights-cli/pkg/ftc"
	"github.com/tsg-insights/insights-cli/pkg/postcodes"
)

var prepareOutputDir string

var prepareCmd = &cobra.Command{
	Use:   "prepare FILE...",
	Short: "Run the enrichment pipeline over one or more grant files",
	Long:  "Parses each file (csv, xls, xlsx or json), enriches it with charity, company and postcode data, and writes <name>.enriched.csv next to it. Files are processed concurrently; each run owns its dataset and shares the lookup cache (last writer wins).",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newCacheStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		charityClient := ftc.New(cfg.Charity)
		companyClient := companieshouse.New(cfg.Company)
		postcodeClient := postcodes.New(cfg.Postcodes)

		printer := message.NewPrinter(language.BritishEnglish)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Prepare.Concurrency)

		for _, path := range args {
			path := path
			g.Go(func() error {
				contents, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read %s", path)
				}

				opts := pipeline.Options{SaveCacheOnError: cfg.Prepare.SaveCacheOnError}
				if progressEnabled(len(args)) {
					opts.Sink = &barSink{}
				}
				p := pipeline.New(store, charityClient, companyClient, postcodeClient, opts)

				tbl, _, err := p.Run(gCtx, pipeline.RunInput{
					Contents: contents,
					Filename: filepath.Base(path),
				})
				if err != nil {
					return err
				}

				outPath := outputPath(path)
				out, err := os.Create(outPath)
				if err != nil {
					return eris.Wrapf(err, "create %s", outPath)
				}
				defer out.Close() //nolint:errcheck
				if err := tbl.WriteCSV(out); err != nil {
					return err
				}

				printer.Printf("%s: %d rows, %d columns -> %s\n",
					path, tbl.NumRows(), len(tbl.Columns()), outPath)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			zap.L().Error("prepare: failed", zap.Error(err))
			return err
		}
		return nil
	},
}

func outputPath(path string) string {
	dir := filepath.Dir(path)
	if prepareOutputDir != "" {
		dir = prepareOutputDir
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".enriched.csv")
}

func init() {
	prepareCmd.Flags().StringVarP(&prepareOutputDir, "output-dir", "o", "", "directory for enriched output files (default: alongside input)")
	rootCmd.AddCommand(prepareCmd)
}
