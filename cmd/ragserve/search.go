package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func searchCMD(load loader) *cobra.Command {
	var topK int
	var fields []string
	var search = &cobra.Command{
		Use:   "search <query>",
		Short: "Run a BM25 query against the chunk index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			gw, closeFn, err := openGateway(ctx, load)
			if err != nil {
				return err
			}
			defer closeFn()
			hits, err := gw.Search(ctx, strings.Join(args, " "), topK, fields...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(hits)
		},
	}
	search.Flags().IntVarP(&topK, "top-k", "k", 10, "number of hits")
	search.Flags().StringSliceVar(&fields, "fields", nil, "fields to match (default content)")
	return search
}
