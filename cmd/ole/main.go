package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	ole "github.com/asalih/go-ole"
)

// Global flags shared by all subcommands
var (
	strict  bool = false
	verbose bool = false
)

// appFs is where containers are read from and streams extracted to.
// Tests swap it for an in-memory filesystem.
var appFs afero.Fs = afero.NewOsFs()

func main() {
	if err := createRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// createRootCommand creates the ole command with all subcommands attached
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ole",
		Short: "Inspect and extract OLE compound files",
		Long: `ole reads Compound File Binary containers (.doc, .xls, .msi, .msg and
similar) and lets you inspect the header, list storages and streams,
print a stream or extract the whole tree to a directory.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false,
		"Reject files with inconsistent bookkeeping instead of reading them anyway")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log each parsing stage to stderr")

	rootCmd.AddCommand(createHeaderCommand())
	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createCatCommand())
	rootCmd.AddCommand(createExtractCommand())

	return rootCmd
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}

	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openContainer opens name from appFs with the global flags applied.
func openContainer(name string) (*ole.CompoundFile, error) {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	opts := []ole.Option{ole.WithLogger(logger)}
	if strict {
		opts = append(opts, ole.WithValidation(ole.ValidationStrict))
	}

	cf, err := ole.OpenFile(appFs, name, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return cf, nil
}

func validateFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported --format %q (supported: text, json, yaml)", format)
	}
}

// writeFormatted renders v as json or yaml, or calls text for the text format.
func writeFormatted(out io.Writer, format string, v interface{}, text func(io.Writer) error) error {
	switch format {
	case "text":
		return text(out)

	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil

	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, _ = fmt.Fprint(out, string(b))
		return nil

	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
