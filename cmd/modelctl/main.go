package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opst/modelfab/cmd/modelctl/rest"
	"github.com/opst/modelfab/pkg/buildtime"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// newClient is replaced in tests.
var newClient = func(server string) (rest.Client, error) {
	return rest.New(server, nil)
}

func main() {
	if err := execute(os.Args, os.Stdout, os.Stderr); err != nil {
		var silent *SilentExitError
		if !errors.As(err, &silent) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// SilentExitError fails the command without printing, when the output tells the failure.
type SilentExitError struct {
	Reason string
}

func (e *SilentExitError) Error() string {
	return e.Reason
}

type options struct {
	server string
	async  bool
}

func (o *options) client() (rest.Client, error) {
	return newClient(o.server)
}

func execute(args []string, stdout io.Writer, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.Version = buildtime.VersionString()
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	server := os.Getenv("MODELFAB_SERVER")
	if server == "" {
		server = defaultServer
	}

	root := &cobra.Command{
		Use:           "modelctl",
		Short:         "Inspect, update and deploy models of modelfab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "url of modelfab server (env: MODELFAB_SERVER)")
	root.PersistentFlags().BoolVar(
		&opts.async, "async", false,
		"queue requests and exit with tickets, instead of waiting for results",
	)

	root.AddCommand(
		newModelsCmd(opts),
		newNodeCmd(opts),
		newChangesCmd(opts),
		newApplyCmd(opts),
		newValidateCmd(opts),
		newDeployCmd(opts),
	)
	return root
}
