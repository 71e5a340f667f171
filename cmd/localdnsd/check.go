package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/repos/records"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a records file and print its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return checkRecords(cmd.OutOrStdout(), args[0], cfg.Records.Suffix, logger)
		},
	}
}

// checkRecords strict-loads path and prints one "host address" line per entry.
func checkRecords(w io.Writer, path, suffix string, logger log.Logger) error {
	store, err := records.LoadStrict(path, suffix, records.WithLogger(logger))
	if err != nil {
		return err
	}
	for _, host := range store.Hosts() {
		addr, _ := store.Get(host)
		fmt.Fprintf(w, "%s\t%s\n", host, addr)
	}
	fmt.Fprintf(w, "%d records OK\n", store.Len())
	return nil
}
