package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mailprobe/verifier"
)

var (
	flagFrom    string
	flagHelo    string
	flagTimeout int
	flagMaxMX   int
	flagPorts   string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "mailprobe",
	Short:         "Email deliverability checker (DNS + SMTP probing)",
	Long:          "mailprobe determines whether an address can receive mail without sending any: syntax, MX resolution, SMTP RCPT probing and catch-all detection.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Argument errors exit with code 2, matching the
// check command's unknown-result code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(2)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagFrom, "from", "verify@example.com", "MAIL FROM address used in SMTP probes")
	pf.StringVar(&flagHelo, "helo", "example.com", "EHLO/HELO hostname")
	pf.IntVar(&flagTimeout, "timeout", 7, "timeout in seconds per network operation")
	pf.IntVar(&flagMaxMX, "max-mx", 3, "maximum MX hosts to try")
	pf.StringVar(&flagPorts, "ports", "25", "comma-separated SMTP ports (e.g. 25,587)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "capture SMTP trace into the result logs")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(serveCmd)
}

// newEngine builds a standalone engine from the global flags; the CLI runs
// without the database or Redis.
func newEngine() (*verifier.Verifier, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	ports, err := verifier.ParsePorts(flagPorts)
	if err != nil {
		return nil, err
	}
	opts := verifier.Options{
		FromAddress: flagFrom,
		HeloHost:    flagHelo,
		Timeout:     time.Duration(flagTimeout) * time.Second,
		MaxMX:       flagMaxMX,
		Ports:       ports,
		Verbose:     flagVerbose,
	}
	return verifier.New(opts, log)
}
