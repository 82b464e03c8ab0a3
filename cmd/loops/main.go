package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	modelfab "github.com/opst/modelfab/pkg"
	cfg_hook "github.com/opst/modelfab/pkg/configs/hook"
	"github.com/opst/modelfab/pkg/configs/server"
	"github.com/opst/modelfab/pkg/loop/recurring"
	"github.com/opst/modelfab/pkg/utils/args"
	"github.com/opst/modelfab/pkg/utils/filewatch"
	"github.com/opst/modelfab/pkg/utils/try"
	"github.com/opst/modelfab/pkg/workers"
)

func main() {
	logger := workers.NewLogger(log.Default(), workers.Copied(), workers.WithTimestamp())
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("MODELFAB_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("MODELFAB_SCHEMA"), "schema repository path",
	)
	//-- which loop type to run
	loopType := args.Parser(workers.AsLoopType)
	flag.Var(loopType, "type", "one of loop type: update|deploy|response")
	//-- loop policy. the policy in the config file is used when not given.
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as interval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	flag.Parse()

	conf := try.To(server.Load(*pconfig)).OrFatal(logger)
	if conf.Queue().Mode() != server.Async {
		logger.Fatal("queue mode is not async. no messages are queued.")
	}
	if !loopType.Value().IsKnown() {
		logger.Fatalf("-type is required: one of %v", workers.LoopTypes)
	}

	hooks := cfg_hook.Config{}
	if hookPath := conf.Hooks(); hookPath != "" {
		hooks = try.To(cfg_hook.Load(hookPath)).OrFatal(logger)
	}

	{
		// watch config & hooks
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig, conf.Hooks())
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	options := []modelfab.AttachOption{}
	if *pSchemaRepo != "" {
		options = append(options, modelfab.WithSchemaRepository(*pSchemaRepo))
	}
	mf := try.To(modelfab.Attach(ctx, conf, hooks, logger, options...)).OrFatal(logger)
	defer mf.Close()
	if !mf.Shared() {
		logger.Fatal("database is not configured. queues in memory can not be shared with the server.")
	}

	{
		sctx, ccan := mf.Context(ctx)
		defer ccan()
		ctx = sctx
	}

	p := policy.Or(conf.Queue().Policy())

	logger.Printf(
		`start loop "%s" with policy "%s"`,
		loopType.Value().String(), p.String(),
	)

	progress, err := workers.StartLoop(
		ctx, logger, mf.Service(),
		workers.LoopManifest{
			Type:    loopType.Value(),
			Policy:  recurring.UntilError(p),
			Timeout: conf.Queue().Timeout(),
		},
	)
	logger.Printf("loop stopped. processed: %d, failures: %d", progress.Processed, progress.Failures)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, " (loop context is cancelled by: ", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}
