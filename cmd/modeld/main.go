package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	modelfab "github.com/opst/modelfab/pkg"
	"github.com/opst/modelfab/pkg/buildtime"
	cfg_hook "github.com/opst/modelfab/pkg/configs/hook"
	"github.com/opst/modelfab/pkg/configs/server"
	"github.com/opst/modelfab/pkg/metrics"
	"github.com/opst/modelfab/pkg/utils/filewatch"
	"github.com/opst/modelfab/pkg/utils/try"
	"github.com/opst/modelfab/pkg/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := workers.NewLogger(log.Default(), workers.Copied(), workers.WithTimestamp())
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("MODELFAB_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("MODELFAB_SCHEMA"), "schema repository path. built-in schema is used when empty",
	)
	ploglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pWithLoops := flag.Bool(
		"with-loops", true,
		"run worker loops in this process. it is required when the queue is in memory.",
	)
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	logger.Printf("modeld %s", buildtime.VersionString())
	conf := try.To(server.Load(*pconfig)).OrFatal(logger)
	hooks := cfg_hook.Config{}
	if hookPath := conf.Hooks(); hookPath != "" {
		hooks = try.To(cfg_hook.Load(hookPath)).OrFatal(logger)
	}

	{
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

	{
		sctx, ccan := mf.Context(ctx)
		defer ccan()
		ctx = sctx
	}

	runLoops := conf.Queue().Mode() == server.Async
	if runLoops && !*pWithLoops {
		if !mf.Shared() {
			logger.Fatal("queue is in memory. worker loops should run in this process.")
		}
		runLoops = false
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		logger.Fatal(err)
	}

	e := newServer(mf.Service(), registry, *ploglevel)
	for _, r := range e.Routes() {
		logger.Println("route:", r.Method, r.Path)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		addr := fmt.Sprintf(":%d", conf.Port())
		var err error
		if *pcert != "" && *pkey != "" {
			err = e.StartTLS(addr, *pcert, *pkey)
		} else {
			err = e.Start(addr)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-gctx.Done()
		graceful, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(graceful)
	})
	if runLoops {
		logger.Printf(`start worker loops /w policy "%s"`, conf.Queue().Policy())
		eg.Go(func() error {
			return workers.StartLoops(gctx, logger, mf.Service(), conf.Queue().Policy(), conf.Queue().Timeout())
		})
	}

	err := eg.Wait()
	if cause := context.Cause(ctx); cause != nil {
		if filewatch.IsModified(ctx) {
			logger.Println("restart to reload:", cause)
			os.Exit(1)
		}
		logger.Println("stopped:", cause)
		return
	}
	if err != nil {
		logger.Fatal(err)
	}
}
