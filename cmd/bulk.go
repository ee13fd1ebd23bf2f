package cmd

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mailprobe/verifier"
)

var (
	flagInput       string
	flagConcurrency int
	flagOut         string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Validate many emails from a file or stdin",
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if flagOut != "ndjson" && flagOut != "csv" && flagOut != "json" {
			fmt.Fprintf(os.Stderr, "invalid output format: %s\n", flagOut)
			os.Exit(2)
		}

		emails, err := readEmails(flagInput)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if len(emails) == 0 {
			fmt.Fprintln(os.Stderr, "No emails to process")
			os.Exit(0)
		}

		if err := runBulk(engine, emails); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	},
}

func init() {
	bulkCmd.Flags().StringVarP(&flagInput, "input", "i", "-", "input file with one email per line, or '-' for stdin")
	bulkCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 10, "parallel workers")
	bulkCmd.Flags().StringVar(&flagOut, "out", "ndjson", "output format: ndjson, csv or json")
}

func readEmails(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var emails []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails = append(emails, line)
	}
	return emails, scanner.Err()
}

func runBulk(engine *verifier.Verifier, emails []string) error {
	ch, err := engine.CheckMany(context.Background(), emails, flagConcurrency)
	if err != nil {
		return err
	}

	var summary verifier.Summary
	var collected []*verifier.Result

	var cw *csv.Writer
	if flagOut == "csv" {
		cw = csv.NewWriter(os.Stdout)
		cw.Write([]string{
			"email", "normalized_email", "domain", "status", "reason",
			"is_deliverable", "is_catch_all", "is_disposable",
			"domain_has_mx", "smtp_connectable", "mx_hosts",
		})
	}

	enc := json.NewEncoder(os.Stdout)
	for res := range ch {
		summary.Add(res)
		switch flagOut {
		case "ndjson":
			enc.Encode(res)
		case "csv":
			cw.Write(csvRow(res))
			cw.Flush()
		default:
			collected = append(collected, res)
		}
	}

	if flagOut == "json" {
		out, _ := json.MarshalIndent(collected, "", "  ")
		fmt.Println(string(out))
	}

	fmt.Fprintf(os.Stderr, "Processed %d: deliverable=%d undeliverable=%d unknown=%d invalid=%d\n",
		summary.Total(), summary.Deliverable, summary.Undeliverable, summary.Unknown, summary.Invalid)
	return nil
}

func csvRow(res *verifier.Result) []string {
	return []string{
		res.Email,
		derefOr(res.NormalizedEmail, ""),
		derefOr(res.Domain, ""),
		res.Status,
		derefOr(res.Reason, ""),
		triState(res.IsDeliverable),
		triState(res.IsCatchAll),
		triState(res.IsDisposable),
		yesNo(res.DomainHasMX),
		yesNo(res.SMTPConnectable),
		strings.Join(res.MXHosts, ";"),
	}
}

func triState(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "true"
	}
	return "false"
}
