package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tsg-insights/insights-cli/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the lookup cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many lookups the cache holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newCacheStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		c, err := cache.Load(ctx, store)
		if err != nil {
			return err
		}

		printer := message.NewPrinter(language.BritishEnglish)
		printer.Printf("charities:  %d\n", len(c.Charity))
		printer.Printf("companies:  %d\n", len(c.Company))
		printer.Printf("postcodes:  %d\n", len(c.Postcode))
		printer.Printf("area names: %d\n", len(c.Geocodes))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newCacheStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		return store.Delete(ctx, cache.BlobKey)
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
