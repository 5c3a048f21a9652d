// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/duetprep/duetprep/cmd/duetprep/cli"
	"github.com/duetprep/duetprep/lib/columnar"
)

type inspectParams struct {
	cli.JSONOutput

	Verify bool
}

// containerReport describes one container.
type containerReport struct {
	Path              string         `json:"path"`
	Hash              columnar.Hash  `json:"hash"`
	Rows              int            `json:"rows"`
	Bytes             int64          `json:"bytes"`
	UncompressedBytes int64          `json:"uncompressed_bytes"`
	Attributes        map[string]any `json:"attributes"`
	Columns           []columnReport `json:"columns"`
	Verified          bool           `json:"verified"`
	Error             string         `json:"error,omitempty"`
}

type columnReport struct {
	Name              string        `json:"name"`
	Type              string        `json:"type"`
	Compression       string        `json:"compression"`
	Rows              uint64        `json:"rows"`
	Bytes             uint64        `json:"bytes"`
	UncompressedBytes uint64        `json:"uncompressed_bytes"`
	Hash              columnar.Hash `json:"hash"`
}

func inspectCommand() *cli.Command {
	var params inspectParams

	return &cli.Command{
		Name:    "inspect",
		Summary: "Describe columnar containers",
		Description: `Print the attributes, columns, row count, sizes, compression and hash
of each container. With --verify, decompress every column and check it
against its recorded hash; any failure exits 1.`,
		Usage: "duetprep inspect [--verify] [--json] FILE...",
		Examples: []cli.Example{
			{
				Description: "Describe every container in a directory",
				Command:     "duetprep inspect out/*.duet",
			},
			{
				Description: "Verify a container",
				Command:     "duetprep inspect --verify out/train.duet",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			params = inspectParams{}
			params.JSONOutput.AddFlag(flagSet)
			flagSet.BoolVar(&params.Verify, "verify", false, "decode every column and check its hash")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one container path is required")
			}
			return runInspect(args, params.Verify, &params.JSONOutput, os.Stdout)
		},
	}
}

// runInspect reports on every container in paths. A container that
// cannot be opened is an error; one that fails verification is
// reported and turns the result into a non-zero exit.
func runInspect(paths []string, verify bool, output *cli.JSONOutput, w io.Writer) error {
	reports := make([]containerReport, 0, len(paths))
	failed := false
	for _, path := range paths {
		report, err := inspectContainer(path, verify)
		if err != nil {
			return err
		}
		if report.Error != "" {
			failed = true
		}
		reports = append(reports, report)
	}

	if output != nil {
		if done, err := output.EmitJSON(reports); done {
			if err == nil && failed {
				return &cli.ExitError{Code: 1}
			}
			return err
		}
	}
	for i, report := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printContainerReport(w, report, verify)
	}
	if failed {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func inspectContainer(path string, verify bool) (containerReport, error) {
	reader, err := columnar.OpenMapped(path)
	if err != nil {
		return containerReport{}, err
	}
	defer reader.Close()

	report := containerReport{
		Path:              path,
		Hash:              reader.Hash,
		Rows:              reader.Rows(),
		Bytes:             reader.TotalSize(),
		UncompressedBytes: reader.UncompressedSize(),
		Attributes:        reader.Attributes,
	}
	for _, column := range reader.Columns {
		report.Columns = append(report.Columns, columnReport{
			Name:              column.Name,
			Type:              column.Type.String(),
			Compression:       column.Compression.String(),
			Rows:              column.Rows,
			Bytes:             column.CompressedSize,
			UncompressedBytes: column.UncompressedSize,
			Hash:              column.Hash,
		})
	}
	if verify {
		if err := reader.Verify(); err != nil {
			report.Error = err.Error()
		} else {
			report.Verified = true
		}
	}
	return report, nil
}

func printContainerReport(w io.Writer, report containerReport, verify bool) {
	fmt.Fprintf(w, "%s\n", report.Path)
	fmt.Fprintf(w, "  hash: %s\n", report.Hash)
	fmt.Fprintf(w, "  rows: %s\n", humanize.Comma(int64(report.Rows)))
	fmt.Fprintf(w, "  size: %s (%s uncompressed)\n",
		humanize.IBytes(uint64(report.Bytes)), humanize.IBytes(uint64(report.UncompressedBytes)))

	if len(report.Attributes) > 0 {
		fmt.Fprintf(w, "  attributes:\n")
		for _, name := range slices.Sorted(maps.Keys(report.Attributes)) {
			fmt.Fprintf(w, "    %s: %v\n", name, report.Attributes[name])
		}
	}

	fmt.Fprintf(w, "  columns:\n")
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "    NAME\tTYPE\tCOMPRESSION\tROWS\tSIZE\tUNCOMPRESSED\tHASH\n")
	for _, column := range report.Columns {
		fmt.Fprintf(tw, "    %s\t%s\t%s\t%s\t%s\t%s\t%s\n", column.Name, column.Type, column.Compression,
			humanize.Comma(int64(column.Rows)), humanize.IBytes(column.Bytes),
			humanize.IBytes(column.UncompressedBytes), column.Hash.Short())
	}
	tw.Flush()

	if verify {
		if report.Error != "" {
			fmt.Fprintf(w, "  verify: FAILED: %s\n", report.Error)
		} else {
			fmt.Fprintf(w, "  verify: ok\n")
		}
	}
}
