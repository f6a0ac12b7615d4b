package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	ole "github.com/asalih/go-ole"
)

// extract command flags
var extractJobs int = 4

// createExtractCommand creates the extract subcommand
func createExtractCommand() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract [flags] FILE DEST_DIR",
		Short: "Extract every stream to a directory",
		Long: `Extract recreates the storage tree of a compound file below DEST_DIR.
Storages become directories and streams become files. Streams are
written in parallel, at most --jobs at a time.`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if extractJobs < 1 {
				return fmt.Errorf("--jobs must be at least 1, got %d", extractJobs)
			}
			return nil
		},
		RunE: executeExtract,
	}

	extractCmd.Flags().IntVarP(&extractJobs, "jobs", "j", 4,
		"Number of streams written concurrently")

	return extractCmd
}

func executeExtract(cmd *cobra.Command, args []string) error {
	cf, err := openContainer(args[0])
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(extractJobs)

	// Targets are derived from the parent's target and the raw entry name,
	// never from the rendered path, which may be ambiguous.
	targets := map[uint32]string{}
	walkErr := cf.Walk(func(entry *ole.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		dirEntry := cf.Entries()[entry.ID]
		target := args[1]
		if dirEntry.HasParent() {
			target = filepath.Join(targets[dirEntry.Parent], safeName(entry.Name))
		}
		targets[entry.ID] = target

		if entry.IsStorage() {
			return appFs.MkdirAll(target, 0755)
		}
		if !entry.IsStream() {
			return nil
		}

		g.Go(func() error {
			return extractStream(cf, dirEntry, target)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return walkErr
}

func extractStream(cf *ole.CompoundFile, dirEntry *ole.DirEntry, target string) error {
	f, err := appFs.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()

	slice, err := cf.OpenEntry(dirEntry)
	if errors.Is(err, ole.ErrEmptyEntry) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, slice); err != nil {
		return fmt.Errorf("extract %s: %w", target, err)
	}
	return nil
}

func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == ':', r < 0x20:
			return '_'
		default:
			return r
		}
	}, name)

	if name == "" || name == "." || name == ".." {
		return "_" + name
	}
	return name
}
