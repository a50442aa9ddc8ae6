package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"courtbook/internal/application"
	"courtbook/internal/booking"
	"courtbook/internal/entity"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	fail    = color.New(color.FgRed).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

func runBook(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitCode = booking.OutcomeFailed.ExitCode()
		return err
	}

	outcome, res, err := application.New(cfg, logger).Run(cmd.Context())
	exitCode = outcome.ExitCode()
	printSummary(os.Stdout, outcome, res)
	return err
}

// printSummary writes the human-readable end of a run.
func printSummary(w io.Writer, outcome booking.Outcome, res *entity.Result) {
	fmt.Fprintln(w)
	if res != nil {
		row := func(label, value string) {
			if value == "" {
				value = "-"
			}
			fmt.Fprintf(w, "  %-9s %s\n", label, info(value))
		}
		row("Club", res.Club)
		row("Date", res.Date)
		row("Duration", res.Duration)
		row("Time", res.Time)
		row("Court", res.Court)
		if res.Status != "" {
			row("Status", res.Status)
		}
	}

	switch {
	case outcome == booking.OutcomeFailed:
		fmt.Fprintf(w, "%s Reservation failed\n", fail("✗"))
	case res != nil && res.DryRun:
		fmt.Fprintf(w, "%s Dry run: slot found, nothing saved\n", success("✓"))
	case outcome == booking.OutcomeUnconfirmed:
		fmt.Fprintf(w, "%s Reservation may not have been saved; check the portal\n", warn("!"))
	default:
		fmt.Fprintf(w, "%s Reservation confirmed\n", success("✓"))
	}
}
