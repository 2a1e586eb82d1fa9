package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/duty-engine/api"
	"github.com/warp/duty-engine/config"
	"github.com/warp/duty-engine/generic"
)

var errViolations = errors.New("log has bad findings")

type checkFlags struct {
	file   string
	at     string
	zone   string
	rules  string
	json   bool
	strict bool
}

func newCheckCmd() *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a JSON log file and print its findings",
		Example: `  dutyengine check --file roster.json
  dutyengine check --file - --at 2025-03-20T12:00 --json < roster.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", `log file, "-" for stdin`)
	cmd.Flags().StringVar(&f.at, "at", "", "instant for the rolling picture, YYYY-MM-DDTHH:MM (default now)")
	cmd.Flags().StringVar(&f.zone, "zone", "", "IANA zone (default from config)")
	cmd.Flags().StringVar(&f.rules, "rules", "", "JSON rules document (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero when any finding is bad")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runCheck(cmd *cobra.Command, f checkFlags) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if f.zone != "" {
		cfg.Zone = f.zone
	}
	if f.rules != "" {
		cfg.RulesFile = f.rules
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	loc := rules.Location()

	var in io.Reader = cmd.InOrStdin()
	if f.file != "-" {
		file, err := os.Open(f.file)
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}

	duties, sleep, settings, err := api.ParseLog(in, loc)
	if err != nil {
		return fmt.Errorf("%s: %w", f.file, err)
	}

	at := time.Now().In(loc)
	if f.at != "" {
		if at, err = generic.ParseInstant(f.at, loc); err != nil {
			return err
		}
	}

	report := api.BuildCheckReport(rules, duties, sleep, settings, at)

	out := cmd.OutOrStdout()
	if f.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if f.strict && report.Worst() == generic.SeverityBad {
		return errViolations
	}
	return nil
}

func printReport(w io.Writer, r api.CheckReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Rolling picture at %s\n", r.At)
	for _, f := range r.Rolling.Findings {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", marker(f.Severity), f.Key, f.Text)
	}

	for _, d := range r.Duties {
		fmt.Fprintf(tw, "\n%s\t%s\t%s\n", dutyLabel(d.Duty), d.Duty.Kind, d.Duty.Duration)
		for _, b := range d.Badges {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", marker(b.Severity), b.Key, b.Text)
		}
		if len(d.Disruptive) > 0 {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", marker(generic.SeverityInfo), "disruptive", strings.Join(d.Disruptive, ", "))
		}
		if d.Fatigue != nil {
			fmt.Fprintf(tw, "  %s\t%s\t%d (%s) %s\n", marker(d.Fatigue.Band.Severity()), "fatigue",
				d.Fatigue.Score, d.Fatigue.Band, strings.Join(d.Fatigue.Chips, " · "))
		}
		for _, n := range d.Notes {
			fmt.Fprintf(tw, "  \t\t%s\n", n)
		}
	}
	tw.Flush()
}

func dutyLabel(d api.DutyDTO) string {
	switch {
	case d.Report != "":
		return d.Report
	case d.Standby != nil:
		return d.Standby.Start
	default:
		return d.Date
	}
}

func marker(s generic.Severity) string {
	switch s {
	case generic.SeverityBad:
		return "BAD"
	case generic.SeverityWarn:
		return "WARN"
	case generic.SeverityOK:
		return "ok"
	default:
		return "-"
	}
}
