package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treffen/confsync/internal/extractor"
	"github.com/treffen/confsync/internal/feed"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	Rules     string
	Output    string
	Obfuscate bool
	Seed      uint64
}

// ExtractReport summarizes an extraction.
type ExtractReport struct {
	Output   string `json:"output"`
	Bytes    int    `json:"bytes"`
	Rooms    int    `json:"rooms"`
	Sessions int    `json:"sessions"`
	Videos   int    `json:"videos"`
	Speakers int    `json:"speakers"`
	Tags     int    `json:"tags"`
}

func (r ExtractReport) String() string {
	return fmt.Sprintf("wrote %s (%d bytes): %d sessions, %d videos, %d speakers, %d tags, %d rooms",
		r.Output, r.Bytes, r.Sessions, r.Videos, r.Speakers, r.Tags, r.Rooms)
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract <sources>",
		Short: "Convert a vendor CMS export into a conference document",
		Long: `Convert a vendor CMS export into the conference document the feed publishes.

<sources> is either a directory holding rooms.json, categories.json,
speakers.json, topics.json, tag_category_mapping.json and tag_conf.json, or a
single JSON file holding every source under its name. The extraction rules
(room mapping, keynote ids, video category, conference dates) are read from a
CUE file.

Output is byte-identical for identical input. A .zst output is compressed.

Example:
  confsync extract --rules extract.cue --output feed/session_data.json ./export
  confsync extract --rules extract.cue --obfuscate --seed 42 --output - export.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to the CUE extraction rules (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&opts.Obfuscate, "obfuscate", false, "replace human-readable text with placeholder words")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "obfuscation seed")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runExtract(cmd *cobra.Command, opts *ExtractOptions, source string) error {
	cfg, err := extractor.LoadConfig(opts.Rules)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid extraction rules", err)
	}

	src, err := loadSources(source)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sources", err)
	}

	xopts := extractor.Options{Logger: opts.Logger}
	if opts.Obfuscate {
		xopts.Transformer = extractor.NewSeededObfuscator(opts.Seed)
	}
	doc, err := extractor.New(cfg, xopts).Extract(src)
	if err != nil {
		return WrapExitError(ExitFailure, "extraction failed", err)
	}

	data, err := doc.Encode()
	if err != nil {
		return WrapExitError(ExitFailure, "extraction failed", err)
	}

	report := ExtractReport{
		Output:   opts.Output,
		Rooms:    len(doc.Rooms),
		Sessions: len(doc.Sessions),
		Videos:   len(doc.VideoLibrary),
		Speakers: len(doc.Speakers),
		Tags:     len(doc.Tags),
	}

	if opts.Output == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if strings.HasSuffix(opts.Output, feed.CompressedExt) {
		data = feed.Compress(data)
	}
	report.Bytes = len(data)
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	out := opts.formatter(cmd)
	out.VerboseLog("extracted %s from %s", filepath.Base(opts.Output), source)
	return out.Success(report)
}

func loadSources(path string) (extractor.Sources, error) {
	if isDir(path) {
		return extractor.LoadSources(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return extractor.Sources{}, err
	}
	return extractor.ParseSources(data)
}
