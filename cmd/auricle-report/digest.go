package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricle/internal/report"
)

var errDigestArgs = errors.New("expected exactly one argument: path to the report")

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:      "digest",
		Usage:     "Summarize an auricle JSONL report (plain or compressed)",
		ArgsUsage: "<report.jsonl[.gz|.zst|.sz|.br|.lz4]>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "issue",
				Usage: "Show files affected by a check (e.g., target-loudness, peak-headroom, dynamics)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errDigestArgs
			}

			return runDigest(cmd.Args().First(), cmd.String("issue"))
		},
	}
}

func runDigest(reportPath, issueFilter string) error {
	records, rawLines, err := report.ReadReport(reportPath)
	if err != nil {
		return err //nolint:wrapcheck
	}

	report.Summarize(records).Print(os.Stdout)

	if issueFilter != "" {
		report.PrintIssueDetail(os.Stdout, records, rawLines, issueFilter)
	}

	return nil
}
