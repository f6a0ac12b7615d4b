package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	ole "github.com/asalih/go-ole"
)

// ls command flags
var (
	listFormat string = "text"
	listDigest bool   = false
)

type listEntry struct {
	ole.Entry `yaml:",inline"`
	Digest    digest.Digest `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// createListCommand creates the ls subcommand
func createListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "ls [flags] FILE",
		Short: "List storages and streams",
		Long: `Ls walks the directory tree of a compound file depth-first and prints
one line per storage or stream, children in directory order.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(listFormat)
		},
		RunE: executeList,
	}

	listCmd.Flags().StringVar(&listFormat, "format", "text",
		"Output format: text, json or yaml")
	listCmd.Flags().BoolVar(&listDigest, "digest", false,
		"Compute the sha256 digest of every stream")

	return listCmd
}

func executeList(cmd *cobra.Command, args []string) error {
	cf, err := openContainer(args[0])
	if err != nil {
		return err
	}

	entries := make([]listEntry, 0, len(cf.Entries()))
	err = cf.Walk(func(entry *ole.Entry) error {
		item := listEntry{Entry: *entry}
		if listDigest && entry.IsStream() {
			item.Digest, err = streamDigest(cf, entry)
			if err != nil {
				return err
			}
		}
		entries = append(entries, item)
		return nil
	})
	if err != nil {
		return err
	}

	return writeFormatted(cmd.OutOrStdout(), listFormat, entries, func(out io.Writer) error {
		for _, item := range entries {
			size := "-"
			if item.IsStream() {
				size = humanize.IBytes(item.StreamLen)
			}

			line := fmt.Sprintf("%-8s %10s  %s", item.Type, size, item.Path)
			if item.Digest != "" {
				line += "  " + item.Digest.String()
			}
			_, _ = fmt.Fprintln(out, line)
		}
		return nil
	})
}

func streamDigest(cf *ole.CompoundFile, entry *ole.Entry) (digest.Digest, error) {
	slice, err := cf.OpenEntry(cf.Entries()[entry.ID])
	if errors.Is(err, ole.ErrEmptyEntry) {
		return digest.FromBytes(nil), nil
	}
	if err != nil {
		return "", err
	}

	dgst, err := digest.FromReader(slice)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", entry.Path, err)
	}
	return dgst, nil
}
