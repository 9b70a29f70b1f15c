package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

var (
	flagJSON    bool
	flagNoColor bool
	flagVerbose bool

	stdout io.Writer = os.Stdout
	out    *Output
)

var cmdRoot = &cobra.Command{
	Use:           "karaoke",
	Short:         "Karaoke Lover from the terminal",
	Long:          "Parse karaoke video titles, fetch lyrics, get recommendations and search YouTube using the same services as the API.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		out = NewOutput(OutputOptions{
			JSON:    flagJSON,
			Writer:  stdout,
			NoColor: flagNoColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb",
		})

		log.SetOutput(os.Stderr)
		log.SetLevel(log.WarnLevel)
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	cmdRoot.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output machine-readable JSON")
	cmdRoot.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	cmdRoot.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log service diagnostics to stderr")
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmdRoot.ExecuteContext(ctx)
	switch {
	case err == nil:
		os.Exit(exitSuccess)
	case ctx.Err() != nil:
		fmt.Fprintln(os.Stderr, "Interrupted (Ctrl-C)")
		os.Exit(exitInterrupted)
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr, ue.msg)
		os.Exit(exitUsage)
	}
	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	os.Exit(exitFailure)
}
