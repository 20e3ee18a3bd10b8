package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/report"
	"github.com/hazyhaar/eriflow/run"
)

func (a *app) runCmd() *cobra.Command {
	var (
		input    string
		opts     stackOptions
		keepOpen bool
	)
	cmd := &cobra.Command{
		Use:   "run [record...]",
		Short: "Run records through the assessor form and append results to the result log.",
		Long: `Records come from the arguments (key=value form, one per argument), from
--input (six-column CSV or TSV), or from standard input (rows pasted from a
spreadsheet) when neither is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readRecords(args, input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return errors.New("no records")
			}

			opts.keepSession = keepOpen
			st, err := a.buildStack(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer st.Close()

			a.logger.Info("eriflow: batch starting", "records", len(recs), "result_log", st.logPath)
			rep, runErr := st.runner.RunBatch(cmd.Context(), recs, a.cfg.Session.CredentialStore)
			report.Run(cmd.OutOrStdout(), rep)
			if len(rep.Results) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "results: %s\n", st.logPath)
			}

			if keepOpen && rep.Session != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "browser left open, press Enter to close")
				waitEnter(cmd, cmd.InOrStdin())
				rep.Session.Close()
			}

			switch {
			case errors.Is(runErr, run.ErrAborted):
				a.logger.Warn("eriflow: batch aborted", "completed", len(rep.Outcomes))
			case errors.Is(runErr, run.ErrIO):
				a.logger.Error("eriflow: results not fully written", "pending", rep.Pending)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV or TSV file with six-column records")
	cmd.Flags().StringVarP(&opts.resultLog, "output", "o", "", "result log path (default: timestamped file in output.dir)")
	cmd.Flags().BoolVar(&keepOpen, "keep-open", false, "leave the browser open after the batch until Enter is pressed")
	cmd.Flags().BoolVar(&opts.requireAuth, "require-auth", false, "stop when the session cannot be authenticated")
	cmd.Flags().DurationVar(&opts.manualWait, "manual-login-wait", 0, "time allowed for a manual login when every strategy fails")
	return cmd
}

func readRecords(args []string, input string, stdin io.Reader) ([]record.InputRecord, error) {
	switch {
	case len(args) > 0:
		recs := make([]record.InputRecord, 0, len(args))
		for i, s := range args {
			r, err := record.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, err)
			}
			recs = append(recs, r)
		}
		return recs, nil
	case input != "":
		return record.ReadTableFile(input)
	}
	return record.ReadTable(stdin)
}

// waitEnter blocks until a line is read or the command context ends.
func waitEnter(cmd *cobra.Command, in io.Reader) {
	if in == os.Stdin {
		// Records already consumed stdin when it was the input.
		if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
			<-cmd.Context().Done()
			return
		}
	}
	done := make(chan struct{})
	go func() {
		bufio.NewReader(in).ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-cmd.Context().Done():
	}
}
