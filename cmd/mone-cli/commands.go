package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mone/internal/amqp"
	"mone/internal/core"
	"mone/internal/services"
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Print accounts, budgets and the aggregate balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		full, _ := cmd.Flags().GetBool("full")
		return render(cmd.OutOrStdout(), sess.svc.Snapshot(full))
	},
}

var importCmd = &cobra.Command{
	Use:   "import [flags] <file.csv>",
	Short: "Book the rows of a bank CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		req, err := importRequest(cmd, sess.importDefaults())
		if err != nil {
			return err
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			rows, err := sess.svc.PreviewImport(f, req.Options)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rows)
		}

		res, err := sess.svc.Import(cmd.Context(), f, req)
		if res.Rows > 0 {
			sess.logger.Info("Imported rows", "file", args[0], "rows", res.Rows)
		}
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res)
	},
}

var replaceCmd = &cobra.Command{
	Use:   "replace <current-id> <replacement-id>",
	Short: "Retire an account or budget, moving its transactions to another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sess.svc.Replace(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), sess.svc.Snapshot(false))
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <transaction-id>",
	Short: "Remove a transaction from the book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sess.svc.RemoveTransaction(cmd.Context(), args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [flags] <account-or-budget-id>",
	Short: "Print the running balance of an account or budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := dateFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := dateFlag(cmd, "to")
		if err != nil {
			return err
		}
		points, err := sess.svc.History(args[0], from, to)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), points)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow ledger events published by the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		events := sess.res.Events
		if events == nil {
			return fmt.Errorf("events: AMQP_URL is not set or the broker is unreachable")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		err := events.ConsumeEvents(ctx, func(e *amqp.LedgerEvent) error {
			_, err := fmt.Fprintf(out, "%s %-22s %s balance=%s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, eventSubject(e), e.Balance)
			return err
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func eventSubject(e *amqp.LedgerEvent) string {
	switch {
	case e.Replacement != "":
		return e.ID + " -> " + e.Replacement
	case e.Count > 0:
		return fmt.Sprintf("%d rows", e.Count)
	default:
		return e.ID
	}
}

func importRequest(cmd *cobra.Command, defaults core.ImportOptions) (services.ImportRequest, error) {
	flags := cmd.Flags()
	opts := defaults
	opts.ValueColumn, _ = flags.GetInt("value-column")
	opts.DateColumn, _ = flags.GetInt("date-column")
	opts.DescriptionColumn, _ = flags.GetInt("description-column")
	opts.SkipRows, _ = flags.GetInt("skip-rows")

	if flags.Changed("delimiter") {
		v, _ := flags.GetString("delimiter")
		r := []rune(v)
		if len(r) != 1 {
			return services.ImportRequest{}, fmt.Errorf("invalid delimiter %q: must be a single character", v)
		}
		opts.Delimiter = r[0]
	}
	if flags.Changed("thousands") {
		opts.Thousands, _ = flags.GetString("thousands")
	}
	if flags.Changed("decimal") {
		opts.Decimal, _ = flags.GetString("decimal")
	}
	if flags.Changed("date-format") {
		opts.DateFormat, _ = flags.GetString("date-format")
	}

	account, _ := flags.GetString("account")
	counterpart, _ := flags.GetString("counterpart")
	tags, _ := flags.GetStringSlice("tag")
	return services.ImportRequest{
		Options:     opts,
		Account:     account,
		Counterpart: counterpart,
		Tags:        tags,
	}, nil
}

// dateFlag returns the zero date when the flag is unset.
func dateFlag(cmd *cobra.Command, name string) (core.Date, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

func render(w io.Writer, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: must be yaml or json", format)
	}
}

