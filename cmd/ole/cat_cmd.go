package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ole "github.com/asalih/go-ole"
)

// createCatCommand creates the cat subcommand
func createCatCommand() *cobra.Command {
	catCmd := &cobra.Command{
		Use:   "cat [flags] FILE STREAM_PATH",
		Short: "Write a stream to stdout",
		Long: `Cat writes the contents of one stream to stdout. Paths are absolute
inside the container, e.g. /WordDocument, and match case-insensitively.`,
		Args: cobra.ExactArgs(2),
		RunE: executeCat,
	}

	return catCmd
}

func executeCat(cmd *cobra.Command, args []string) error {
	cf, err := openContainer(args[0])
	if err != nil {
		return err
	}

	slice, err := cf.OpenStream(args[1])
	if errors.Is(err, ole.ErrEmptyEntry) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := io.Copy(cmd.OutOrStdout(), slice); err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}
	return nil
}
