// Package replay implements the replay command, which runs recorded detection
// frames through the threat pipeline offline.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/detection"
	serrors "github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/processor"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// maxLineSize bounds one JSON frame; refined face meshes are large.
const maxLineSize = 16 << 20

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options controls replay output.
type Options struct {
	Format string
	// AlertsOnly suppresses per-frame reports in JSON output.
	AlertsOnly bool
	// Strict aborts on the first malformed line instead of skipping it.
	Strict bool
}

// Summary totals one replay.
type Summary struct {
	Frames  int                 `json:"frames"`
	Invalid int                 `json:"invalid"`
	Alerts  int                 `json:"alerts"`
	Counts  map[threat.Type]int `json:"threat_counts"`
}

// Command creates the replay command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "replay [frames.jsonl]",
		Short: "Replay recorded detection frames",
		Long: `Run recorded detection frames through threat tracking and print the alerts
they raise. Frames are read as JSON lines from the file or, without an
argument or with "-", from standard input. Frames without a timestamp are
spaced at the configured frame rate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := io.Reader(cmd.InOrStdin())
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return serrors.New(err).
						Component("replay").
						Category(serrors.CategoryFileIO).
						Context("path", args[0]).
						Build()
				}
				defer f.Close()
				in = f
			}
			_, err := Run(cmd.Context(), settings, in, cmd.OutOrStdout(), opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatText, "Output format: text, json")
	cmd.Flags().BoolVar(&opts.AlertsOnly, "alerts-only", false, "Only print alerts")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Stop at the first malformed frame")

	return cmd
}

// frameClock follows frame timestamps so cooldowns and durations are
// measured in recorded time.
type frameClock struct{ now time.Time }

func (c *frameClock) Now() time.Time { return c.now }

// Run replays JSON-line frames from in and writes results to out.
func Run(ctx context.Context, settings *conf.Settings, in io.Reader, out io.Writer, opts Options) (Summary, error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Format != FormatText && opts.Format != FormatJSON {
		return Summary{}, fmt.Errorf("unknown format %q", opts.Format)
	}
	log := logger.Global().Module("replay")

	clock := &frameClock{now: time.Now()}
	// Frames without a timestamp are placed at whole-frame offsets from the
	// last timestamped frame, or from the start of the replay.
	origin, index := clock.now, -1
	proc := processor.New(processor.Options{Settings: settings, Clock: clock})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(out)

	var sum Summary
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var f detection.Frame
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			sum.Invalid++
			if opts.Strict {
				return sum, fmt.Errorf("line %d: %w", line, err)
			}
			log.Warn("skipping malformed frame", logger.Int("line", line), logger.Error(err))
			continue
		}

		if f.Timestamp.IsZero() {
			index++
			f.Timestamp = origin.Add(settings.Threats.FrameOffset(index))
		} else {
			origin, index = f.Timestamp, 0
		}
		clock.now = f.Timestamp

		r := proc.Process(ctx, &f)
		sum.Frames++
		sum.Alerts += len(r.Alerts)

		if err := write(out, enc, &r, opts); err != nil {
			return sum, err
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, serrors.New(err).
			Component("replay").
			Category(serrors.CategoryFileIO).
			Context("line", line).
			Build()
	}

	sum.Counts = proc.Dispatcher().Counts()
	log.Info("replay finished",
		logger.Int("frames", sum.Frames),
		logger.Int("invalid", sum.Invalid),
		logger.Int("alerts", sum.Alerts))
	return sum, writeSummary(out, enc, &sum, opts)
}

func write(out io.Writer, enc *json.Encoder, r *processor.Report, opts Options) error {
	if opts.Format == FormatJSON {
		if opts.AlertsOnly {
			for i := range r.Alerts {
				if err := enc.Encode(&r.Alerts[i]); err != nil {
					return err
				}
			}
			return nil
		}
		return enc.Encode(r)
	}

	for _, a := range r.Alerts {
		if _, err := fmt.Fprintf(out, "%s  frame %-6d %-8s %-12s %s\n",
			a.Timestamp.Format("15:04:05.000"), r.Frame, a.Severity, a.Threat, a.Message); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(out io.Writer, enc *json.Encoder, sum *Summary, opts Options) error {
	if opts.Format == FormatJSON {
		return enc.Encode(map[string]*Summary{"summary": sum})
	}

	if _, err := fmt.Fprintf(out, "\n%d frames, %d alerts, %d malformed\n", sum.Frames, sum.Alerts, sum.Invalid); err != nil {
		return err
	}
	types := make([]threat.Type, 0, len(sum.Counts))
	for t := range sum.Counts {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b threat.Type) int { return b.Priority() - a.Priority() })
	for _, t := range types {
		if _, err := fmt.Fprintf(out, "  %-12s %d\n", t, sum.Counts[t]); err != nil {
			return err
		}
	}
	return nil
}
