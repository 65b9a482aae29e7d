package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/ragserve/internal/search"
	srv "github.com/mohammad-safakhou/ragserve/internal/server"
)

// openGateway builds a gateway for one-shot commands; the caller runs close.
func openGateway(ctx context.Context, load loader) (*search.Gateway, func(), error) {
	cfg, err := load()
	if err != nil {
		return nil, nil, err
	}
	gw, closers, err := srv.BuildGateway(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	if !gw.Enabled() {
		closeFn()
		return nil, nil, fmt.Errorf("no search engine configured (set search.host or search.bleve_dir)")
	}
	return gw, closeFn, nil
}

func indexCMD(load loader) *cobra.Command {
	var timeout time.Duration
	var index = &cobra.Command{
		Use:   "index",
		Short: "Create the chunk index if needed and bulk load the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			gw, closeFn, err := openGateway(ctx, load)
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := gw.Reindex(ctx)
			if err != nil {
				return err
			}
			st, err := gw.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks into %s (%d documents)\n", n, gw.Index, st.Count)
			return nil
		},
	}
	index.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall timeout")
	return index
}
