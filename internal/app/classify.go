package app

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/shotmeter/internal/events"
	"github.com/blackwell-systems/shotmeter/internal/output"
	"github.com/blackwell-systems/shotmeter/internal/tailer"
)

var (
	classifySummary bool

	classifyCmd = &cobra.Command{
		Use:   "classify [file]",
		Short: "Print the event recognized in each line of a log",
		Long: `Read a log file (or stdin) and print every line that 'shotmeter watch'
would recognize, prefixed with its event name. Unrecognized lines are
skipped. Useful for checking that a client version still writes the
expected messages.`,
		Example: `  # Check an existing log
  shotmeter classify ~/deskapp.log

  # Only count events
  shotmeter classify --summary < deskapp.log`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassify,
	}
)

func init() {
	classifyCmd.Flags().BoolVarP(&classifySummary, "summary", "s", false, "print only per-event counts")
	RootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	counts, err := classifyLines(in, cmd.OutOrStdout(), classifySummary)
	if err != nil {
		return err
	}
	if classifySummary {
		fmt.Fprint(cmd.OutOrStdout(), output.RenderEventCounts(counts))
	}
	return nil
}

// classifyLines classifies each line of in, echoing matches to out unless
// quiet, and returns the count per event name. Lines are decoded the way
// the tailer decodes them, and lines longer than tailer.DefaultMaxLineBytes
// are skipped whole.
func classifyLines(in io.Reader, out io.Writer, quiet bool) (map[string]int, error) {
	counts := make(map[string]int)

	r := bufio.NewReaderSize(in, 64*1024)
	var line []byte
	skipping := false
	for {
		frag, err := r.ReadSlice('\n')
		if !skipping {
			line = append(line, frag...)
			if len(bytes.TrimSuffix(line, []byte{'\n'})) > tailer.DefaultMaxLineBytes {
				skipping = true
				line = line[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if !skipping && len(line) > 0 {
			raw := bytes.TrimSuffix(bytes.TrimSuffix(line, []byte{'\n'}), []byte{'\r'})
			text := strings.ToValidUTF8(string(raw), "\uFFFD")
			if kind, ok := events.Classify(text); ok {
				counts[kind.String()]++
				if !quiet {
					fmt.Fprintf(out, "%-18s %s\n", kind, text)
				}
			}
		}
		skipping = false
		line = line[:0]

		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return counts, fmt.Errorf("failed to read input: %w", err)
		}
	}
}
