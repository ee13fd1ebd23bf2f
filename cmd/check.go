package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mailprobe/verifier"
)

var flagJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Validate a single email address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		res := engine.Check(context.Background(), args[0])

		if flagJSON {
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
		} else {
			printHuman(res)
		}

		os.Exit(exitCodeFor(res.Status))
	},
}

func init() {
	checkCmd.Flags().BoolVar(&flagJSON, "json", false, "output JSON")
}

func printHuman(res *verifier.Result) {
	fmt.Printf("Email:           %s\n", res.Email)
	fmt.Printf("Normalized:      %s\n", derefOr(res.NormalizedEmail, "-"))
	fmt.Printf("Domain:          %s\n", derefOr(res.Domain, "-"))
	fmt.Printf("Syntax:          %s\n", validOrInvalid(res.IsValidSyntax))
	fmt.Printf("MX records:      %s\n", yesNo(res.DomainHasMX))
	fmt.Printf("SMTP connect:    %s\n", yesNo(res.SMTPConnectable))
	if res.IsCatchAll != nil {
		fmt.Printf("Catch-all:       %s\n", yesNo(*res.IsCatchAll))
	}
	if res.IsDisposable != nil {
		fmt.Printf("Disposable:      %s\n", yesNo(*res.IsDisposable))
	}
	status := res.Status
	if res.Reason != nil {
		status += " (" + *res.Reason + ")"
	}
	fmt.Printf("Status:          %s\n", status)
	if len(res.MXHosts) > 0 {
		fmt.Printf("MX tried:        %s\n", strings.Join(res.MXHosts, ", "))
	}

	// Print the log tail for brevity
	tail := res.Logs
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	if len(tail) > 0 {
		fmt.Println("\nLogs:")
		for _, line := range tail {
			fmt.Println("  " + line)
		}
	}
}

// exitCodeFor maps a terminal status onto the CLI contract: 0 deliverable,
// 1 definitely not deliverable, 2 unknown.
func exitCodeFor(status string) int {
	switch status {
	case verifier.StatusDeliverable:
		return 0
	case verifier.StatusInvalidSyntax, verifier.StatusInvalidDomain, verifier.StatusUndeliverable:
		return 1
	default:
		return 2
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func validOrInvalid(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
