package deskctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/csvutil"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/spf13/cobra"
)

// errDeclined is returned when the operator answers no to a confirmation.
var errDeclined = errors.New("cancelled at the confirmation prompt")

func newActCmd(app *appEnv) *cobra.Command {
	var (
		fields []string
		yes    bool
		params []string
	)
	cmd := &cobra.Command{
		Use:   "act SCREEN KEY VERB",
		Short: "Run one action on one row",
		Example: `  deskctl act deposits 1042 approve
  deskctl act withdrawals 88 reject --field reason="duplicate request"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			screen, key, verb := args[0], args[1], args[2]
			form, err := parsePairs(fields)
			if err != nil {
				return fmt.Errorf("--field: %w", err)
			}
			lp, err := parsePairs(params)
			if err != nil {
				return fmt.Errorf("--param: %w", err)
			}
			c, err := app.openConsole(cmd.Context(), screen, lp)
			if err != nil {
				return err
			}

			req := app.request(verb, form, yes)
			out, err := c.Dispatch(cmd.Context(), key, req)
			if errors.Is(err, dispatch.ErrConfirmationRequired) {
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), out.Prompt) {
					return errDeclined
				}
				req.Confirmed = true
				out, err = c.Dispatch(cmd.Context(), key, req)
			}
			if err != nil {
				return actionError(err, out.Notice.Message)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (request %s)\n", out.Notice.Message, out.RequestID)
			if out.ResyncErr != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: the list could not be refreshed afterwards")
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&fields, "field", nil, "action form input name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "extra list parameter name=value (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "answer yes to the confirmation prompt")
	return cmd
}

func newBatchCmd(app *appEnv) *cobra.Command {
	var (
		fields   []string
		keys     []string
		keysFile string
		yes      bool
		params   []string
		size     int
	)
	cmd := &cobra.Command{
		Use:   "batch SCREEN VERB",
		Short: "Run one batchable action over many rows",
		Long: `Run one batchable action over many rows. Keys come from --keys, from a CSV
file (--keys-file, one key per line or a header naming the key fields), or both.
Rows are sent in chunks of batch_size with batch_delay between chunks; rows
whose status does not allow the action are skipped.`,
		Example: `  deskctl batch deposits approve --keys 1042,1043,1050
  deskctl batch deposits approve --keys-file pending.csv --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			screen, verb := args[0], args[1]
			form, err := parsePairs(fields)
			if err != nil {
				return fmt.Errorf("--field: %w", err)
			}
			lp, err := parsePairs(params)
			if err != nil {
				return fmt.Errorf("--param: %w", err)
			}
			c, err := app.openConsole(cmd.Context(), screen, lp)
			if err != nil {
				return err
			}
			all, err := collectKeys(keys, keysFile, c.Screen().KeyFields)
			if err != nil {
				return err
			}

			policy := app.policy()
			if size > 0 {
				policy.Size = size
			}
			req := app.request(verb, form, yes)
			rep, err := c.Batch(cmd.Context(), all, req, policy)
			if errors.Is(err, dispatch.ErrConfirmationRequired) {
				prompt := fmt.Sprintf("%s (%d rows)", rep.Notice.Message, len(all))
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
					return errDeclined
				}
				req.Confirmed = true
				rep, err = c.Batch(cmd.Context(), all, req, policy)
			}
			if err != nil && !rep.Cancelled {
				return actionError(err, rep.Notice.Message)
			}

			w := cmd.OutOrStdout()
			for _, it := range rep.Items {
				state := "ok"
				switch {
				case !it.Sent:
					state = "skipped"
				case !it.OK:
					state = "failed"
				}
				fmt.Fprintf(w, "%-20s %-8s %s\n", it.Key, state, it.Message)
			}
			fmt.Fprintln(w, rep.Notice.Message)
			if rep.Failed > 0 || rep.Cancelled {
				return fmt.Errorf("batch %s: %d failed, cancelled=%v", rep.RequestID, rep.Failed, rep.Cancelled)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "row keys, comma separated")
	cmd.Flags().StringVar(&keysFile, "keys-file", "", "CSV file of row keys")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "action form input name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "extra list parameter name=value (repeatable)")
	cmd.Flags().IntVar(&size, "size", 0, "rows per chunk (overrides batch_size)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "answer yes to the confirmation prompt")
	return cmd
}

// collectKeys merges --keys and --keys-file, dropping duplicates.
func collectKeys(flagKeys []string, file string, keyFields []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k = strings.TrimSpace(k); k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range flagKeys {
		add(k)
	}
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		fileKeys, err := csvutil.ReadKeys(f, keyFields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		for _, k := range fileKeys {
			add(k)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no keys given (use --keys or --keys-file)")
	}
	return out, nil
}

// confirm asks prompt on out and reads a yes/no answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// actionError prefers the operator-facing notice text over the error chain.
func actionError(err error, msg string) error {
	if msg == "" || errors.Is(err, console.ErrBusy) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
