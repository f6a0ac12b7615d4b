package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var headerFormat string = "text"

type headerSummary struct {
	Version          string    `json:"version" yaml:"version"`
	MinorVersion     uint16    `json:"minor_version" yaml:"minor_version"`
	SectorLen        int       `json:"sector_len" yaml:"sector_len"`
	MiniSectorLen    int       `json:"mini_sector_len" yaml:"mini_sector_len"`
	MiniStreamCutoff uint32    `json:"mini_stream_cutoff" yaml:"mini_stream_cutoff"`
	NumFatSectors    uint32    `json:"fat_sectors" yaml:"fat_sectors"`
	NumDifatSectors  uint32    `json:"difat_sectors" yaml:"difat_sectors"`
	NumMinifat       uint32    `json:"minifat_sectors" yaml:"minifat_sectors"`
	NumDirSectors    int       `json:"dir_sectors" yaml:"dir_sectors"`
	NumEntries       int       `json:"entries" yaml:"entries"`
	RootCLSID        uuid.UUID `json:"root_clsid" yaml:"root_clsid"`
}

// createHeaderCommand creates the header subcommand
func createHeaderCommand() *cobra.Command {
	headerCmd := &cobra.Command{
		Use:   "header [flags] FILE",
		Short: "Print the container header",
		Long: `Header prints the format version, sector sizes and table counts of a
compound file after its allocation tables and directory were loaded.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(headerFormat)
		},
		RunE: executeHeader,
	}

	headerCmd.Flags().StringVar(&headerFormat, "format", "text",
		"Output format: text, json or yaml")

	return headerCmd
}

func executeHeader(cmd *cobra.Command, args []string) error {
	cf, err := openContainer(args[0])
	if err != nil {
		return err
	}

	summary := headerSummary{
		Version:          cf.Header.Version.String(),
		MinorVersion:     cf.Header.MinorVersion,
		SectorLen:        cf.Header.SectorLen(),
		MiniSectorLen:    cf.Header.MiniSectorLen(),
		MiniStreamCutoff: cf.Header.MiniStreamCutoff,
		NumFatSectors:    cf.Header.NumFatSectors,
		NumDifatSectors:  cf.Header.NumDifatSectors,
		NumMinifat:       cf.Header.NumMinifatSectors,
		NumDirSectors:    len(cf.Tables.DirSectors),
		NumEntries:       len(cf.Entries()),
		RootCLSID:        cf.RootEntry().CLSID,
	}

	return writeFormatted(cmd.OutOrStdout(), headerFormat, summary, func(out io.Writer) error {
		_, _ = fmt.Fprintf(out, "Version:            %s (minor 0x%x)\n", summary.Version, summary.MinorVersion)
		_, _ = fmt.Fprintf(out, "Sector size:        %d\n", summary.SectorLen)
		_, _ = fmt.Fprintf(out, "Mini sector size:   %d\n", summary.MiniSectorLen)
		_, _ = fmt.Fprintf(out, "Mini stream cutoff: %d\n", summary.MiniStreamCutoff)
		_, _ = fmt.Fprintf(out, "FAT sectors:        %d\n", summary.NumFatSectors)
		_, _ = fmt.Fprintf(out, "DIFAT sectors:      %d\n", summary.NumDifatSectors)
		_, _ = fmt.Fprintf(out, "MiniFAT sectors:    %d\n", summary.NumMinifat)
		_, _ = fmt.Fprintf(out, "Directory sectors:  %d\n", summary.NumDirSectors)
		_, _ = fmt.Fprintf(out, "Directory entries:  %d\n", summary.NumEntries)
		_, _ = fmt.Fprintf(out, "Root CLSID:         %s\n", summary.RootCLSID)
		return nil
	})
}
