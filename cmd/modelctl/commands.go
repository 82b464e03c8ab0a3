package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opst/modelfab/cmd/modelctl/rest"
	"github.com/opst/modelfab/pkg/domain/history"
	"github.com/opst/modelfab/pkg/domain/update"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the latest version and top-level nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			s, err := c.GetModels(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newNodeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "node SELECTOR",
		Short: "Resolve a selector, like class=emf:Case/attribute=ptop:title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			r, err := c.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func newChangesCmd(opts *options) *cobra.Command {
	var after int64
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show changes recorded after a version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if after < 0 {
				return errors.New("--after should not be negative")
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			changes, err := c.GetChanges(cmd.Context(), after)
			if err != nil {
				return err
			}
			printChanges(cmd.OutOrStdout(), changes)
			return nil
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "show changes recorded after the version")
	return cmd
}

func newApplyCmd(opts *options) *cobra.Command {
	var force bool
	var version int64
	var id string
	cmd := &cobra.Command{
		Use:   "apply FILE",
		Short: "Submit changes in a yaml or json file (- for stdin)",
		Long: `Submit changes in a yaml or json file (- for stdin).

The file is a list of changes, or an update request:

	modelVersion: 3
	changes:
	  - selector: class=emf:Case/attribute=ptop:title
	    operation: modifyAttribute
	    oldValue: Case
	    newValue: Test Case
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("force") {
				req.Force = force
			}
			if cmd.Flags().Changed("version") {
				req.ModelVersion = version
			}
			if id != "" {
				req.Id = id
			}
			if len(req.Changes) == 0 {
				return errors.New("no changes in " + args[0])
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			submitted, err := c.PostChanges(cmd.Context(), req, !opts.async)
			if err != nil {
				return reportError(out, err)
			}
			if submitted.Ticket != nil {
				printTicket(out, *submitted.Ticket)
				return nil
			}
			printResponse(out, submitted.Result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "apply changes even if they collide with others")
	cmd.Flags().Int64Var(&version, "version", 0, "the model version changes are made on")
	cmd.Flags().StringVar(&id, "id", "", "request id")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate nodes changed since they were deployed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			r, err := c.GetDeployment(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printReport(out, r)
			if !r.IsValid() {
				return &SilentExitError{Reason: "deployment candidates are invalid"}
			}
			return nil
		},
	}
}

func newDeployCmd(opts *options) *cobra.Command {
	var version int64
	var all bool
	cmd := &cobra.Command{
		Use:   "deploy [NODE_ID...]",
		Short: "Deploy changed top-level nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if version < 0 {
				return errors.New("--version should not be negative")
			}
			if all == (len(args) != 0) {
				return errors.New("give node ids, or --all")
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			req := history.DeploymentRequest{ModelsToDeploy: args, Version: version}
			if all {
				candidates, err := c.GetDeployment(ctx)
				if err != nil {
					return err
				}
				if candidates.IsEmpty() {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "nothing to be deployed")
					return nil
				}
				req.Version = candidates.Version
				for _, e := range candidates.Nodes {
					req.ModelsToDeploy = append(req.ModelsToDeploy, e.Id)
				}
			}

			out := cmd.OutOrStdout()
			submitted, err := c.PostDeployment(ctx, req, !opts.async)
			if err != nil {
				return reportError(out, err)
			}
			if submitted.Ticket != nil {
				printTicket(out, *submitted.Ticket)
				return nil
			}
			printReport(out, submitted.Result)
			return nil
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "deploy changes up to the version. zero means the latest")
	cmd.Flags().BoolVar(&all, "all", false, "deploy all of candidates at the latest version")
	return cmd
}

// readRequest reads an update request, or a list of changes, from the file.
//
// JSON is read as YAML.
func readRequest(stdin io.Reader, path string) (update.Request, error) {
	var content []byte
	var err error
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return update.Request{}, err
	}

	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return update.Request{}, fmt.Errorf("%s: %w", path, err)
	}
	if list, ok := doc.([]any); ok {
		doc = map[string]any{"changes": list}
	}

	// yaml.v3 decodes maps as map[string]any, which json can encode.
	b, err := json.Marshal(doc)
	if err != nil {
		return update.Request{}, fmt.Errorf("%s: %w", path, err)
	}
	var req update.Request
	if err := json.Unmarshal(b, &req); err != nil {
		return update.Request{}, fmt.Errorf("%s: not an update request: %w", path, err)
	}
	return req, nil
}

// reportError prints the report in the error response, if any.
func reportError(out io.Writer, err error) error {
	var serr *rest.ServerError
	if !errors.As(err, &serr) || serr.Message.Report == nil {
		return err
	}
	printReport(out, serr.Message.Report)
	return err
}
