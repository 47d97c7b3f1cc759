package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"digestcast/internal/pipeline"
	"digestcast/internal/preflight"
)

type windowFlags struct {
	date string
	from string
	to   string
}

// resolve converts the date flags into explicit bounds in loc. Both bounds
// nil means "since the last commit".
func (f windowFlags) resolve(loc *time.Location) (*time.Time, *time.Time, error) {
	date, from, to := strings.TrimSpace(f.date), strings.TrimSpace(f.from), strings.TrimSpace(f.to)
	switch {
	case date != "" && (from != "" || to != ""):
		return nil, nil, errors.New("--date cannot be combined with --from or --to")
	case date != "":
		day, err := parseDay(date, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("--date: %w", err)
		}
		end := day.AddDate(0, 0, 1)
		return &day, &end, nil
	case to != "" && from == "":
		return nil, nil, errors.New("--to requires --from")
	case from != "":
		start, err := parseDay(from, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("--from: %w", err)
		}
		if to == "" {
			return &start, nil, nil
		}
		last, err := parseDay(to, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("--to: %w", err)
		}
		end := last.AddDate(0, 0, 1)
		if !start.Before(end) {
			return nil, nil, errors.New("--to must not be before --from")
		}
		return &start, &end, nil
	default:
		return nil, nil, nil
	}
}

func parseDay(value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	return day, nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags windowFlags
	var keepWork bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and upload the digest for new newsletters",
		Long: "Fetch every registered newsletter received since the last successful run " +
			"(or inside --date / --from..--to), synthesize them, and upload one chaptered audiobook.",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := flags.resolve(time.Local)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := preflight.Failed(preflight.Required(cfg)); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runner, err := pipeline.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			summary, runErr := runner.Run(cmd.Context(), pipeline.Options{Start: start, End: end, KeepWork: keepWork})
			printSummary(cmd.OutOrStdout(), summary)
			if runErr != nil {
				return runErr
			}
			if !summary.ExitOK() {
				return fmt.Errorf("run finished with status %s", summary.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.date, "date", "", "Process a single day (YYYY-MM-DD, local time)")
	cmd.Flags().StringVar(&flags.from, "from", "", "First day to process (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.to, "to", "", "Last day to process, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&keepWork, "keep-work", false, "Keep intermediate audio under paths.work_dir")
	return cmd
}

func printSummary(out io.Writer, s pipeline.Summary) {
	fmt.Fprintf(out, "Run %s: %s\n", s.RunID, s.Status)
	if !s.Window.Start.IsZero() {
		fmt.Fprintf(out, "Window: %s\n", s.Window)
	}
	fmt.Fprintf(out, "Fetched %d, skipped %d, synthesized %d, uploaded %d\n", s.Fetched, s.Skipped, s.Synthesized, s.Uploaded)
	if s.Title != "" {
		fmt.Fprintf(out, "Audiobook: %s (%s)\n", s.Title, formatClock(s.Duration))
	}
	if len(s.Chapters) > 0 {
		rows := make([][]string, len(s.Chapters))
		for i, ch := range s.Chapters {
			rows[i] = []string{strconv.Itoa(i + 1), formatClock(ch.Start), ch.Title}
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Start", "Chapter"}, rows, []columnAlignment{alignRight, alignRight, alignLeft}))
	}
	if s.ReceiptID != "" {
		fmt.Fprintf(out, "Receipt: %s\n", s.ReceiptID)
	}
	if s.ArchivePath != "" {
		fmt.Fprintf(out, "Archived: %s\n", s.ArchivePath)
	}
	if len(s.Failures) > 0 {
		rows := make([][]string, len(s.Failures))
		for i, f := range s.Failures {
			id := f.MessageID
			if id == "" {
				id = "-"
			}
			rows[i] = []string{f.Stage, f.Sender, id, errString(f.Err)}
		}
		fmt.Fprintln(out, renderTable([]string{"Stage", "Sender", "Message", "Error"}, rows, nil))
	}
	if s.Elapsed > 0 {
		fmt.Fprintf(out, "Finished in %s\n", s.Elapsed.Round(time.Millisecond))
	}
}

func formatClock(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
