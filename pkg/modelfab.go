// Package modelfab assembles the model management service from configurations.
package modelfab

import (
	"context"
	"log"
	"net/http"
	"time"

	cfg_hook "github.com/opst/modelfab/pkg/configs/hook"
	"github.com/opst/modelfab/pkg/configs/server"
	kpool "github.com/opst/modelfab/pkg/conn/db/postgres/pool"
	"github.com/opst/modelfab/pkg/db/postgres/schema"
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/deploy"
	pgdownstream "github.com/opst/modelfab/pkg/domain/deploy/downstream/postgres"
	webdownstream "github.com/opst/modelfab/pkg/domain/deploy/downstream/web"
	"github.com/opst/modelfab/pkg/domain/history"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
	hist_inmemory "github.com/opst/modelfab/pkg/domain/history/db/inmemory"
	hist_postgres "github.com/opst/modelfab/pkg/domain/history/db/postgres"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/loader"
	qdb "github.com/opst/modelfab/pkg/domain/queue/db"
	queue_inmemory "github.com/opst/modelfab/pkg/domain/queue/db/inmemory"
	queue_postgres "github.com/opst/modelfab/pkg/domain/queue/db/postgres"
	"github.com/opst/modelfab/pkg/domain/update"
	xe "github.com/opst/modelfab/pkg/errors"
	"github.com/opst/modelfab/pkg/hook"
)

// DownstreamTimeout is the timeout of each request to the downstream.
const DownstreamTimeout = 30 * time.Second

// Modelfab is an assembled model management service.
type Modelfab interface {
	Service() *management.Service
	Config() *server.Config

	// Shared tells histories and queues are shared with other processes.
	Shared() bool

	// Context returns a context which is cancelled when the database schema
	// gets outdated.
	Context(ctx context.Context) (context.Context, context.CancelFunc)

	Close()
}

type modelfab struct {
	config  *server.Config
	service *management.Service
	pool    kpool.Pool
	schema  schema.Interface
}

var _ Modelfab = &modelfab{}

type attachOptions struct {
	schemaRepository string
	client           *http.Client
	base             *model.Models
}

type AttachOption func(*attachOptions) *attachOptions

// WithSchemaRepository upgrades the database with the schema in the directory,
// instead of built-in one.
func WithSchemaRepository(dir string) AttachOption {
	return func(o *attachOptions) *attachOptions {
		o.schemaRepository = dir
		return o
	}
}

// WithHTTPClient sets the client talking to the downstream.
func WithHTTPClient(c *http.Client) AttachOption {
	return func(o *attachOptions) *attachOptions {
		o.client = c
		return o
	}
}

// WithSeed uses the model instead of the seed file in the config.
func WithSeed(m *model.Models) AttachOption {
	return func(o *attachOptions) *attachOptions {
		o.base = m
		return o
	}
}

// Attach connects to the database and the downstream, and builds the service.
//
// Without database in the config, histories and queues are in memory.
// Code-lists and labels are stored only with database.
func Attach(
	ctx context.Context,
	config *server.Config,
	hooks cfg_hook.Config,
	logger *log.Logger,
	options ...AttachOption,
) (Modelfab, error) {
	opts := &attachOptions{client: &http.Client{Timeout: DownstreamTimeout}}
	for _, o := range options {
		opts = o(opts)
	}
	if logger == nil {
		logger = log.Default()
	}

	base := opts.base
	if base == nil {
		b, err := loader.Load(config.Seed())
		if err != nil {
			return nil, xe.WrapWithNote("seed model", err)
		}
		base = b
	}

	mf := &modelfab{config: config}

	var histories kdb.Interface
	var queue qdb.Interface
	var codeLists *pgdownstream.CodeLists
	var labels *pgdownstream.Labels
	if connstr := config.Database(); connstr != "" {
		pool, err := kpool.Connect(ctx, connstr)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		mf.pool = pool

		if opts.schemaRepository != "" {
			mf.schema = schema.New(pool, opts.schemaRepository)
		} else {
			mf.schema = schema.Builtin(pool)
		}
		if err := mf.schema.Upgrade(ctx); err != nil {
			pool.Close()
			return nil, err
		}

		histories = hist_postgres.New(pool)
		queue = queue_postgres.New(pool)
		codeLists = pgdownstream.NewCodeLists(pool)
		labels = pgdownstream.NewLabels(pool)
	} else {
		histories = hist_inmemory.New()
		queue = queue_inmemory.New(0)
	}

	dc := config.Downstream()
	definitions := webdownstream.NewDefinitions(dc.Definitions(), opts.client)
	codeList := deploy.DefinitionCodeList{Id: dc.CodeList(), DescriptionAttribute: dc.CodeListDescription()}

	validator := &deploy.Validator{Definitions: definitions, CodeList: codeList}
	deployer := &deploy.Deployer{
		Definitions: definitions,
		Semantic:    webdownstream.NewSemantic(dc.Semantic(), opts.client),
		CodeList:    codeList,
		Logger:      logger,
	}
	validators := []update.Validator{update.Definitions(definitions)}
	if codeLists != nil {
		validator.CodeLists = codeLists
		deployer.CodeLists = codeLists
		deployer.Labels = labels
		validators = append(validators, update.CodeValues(codeLists))
	}

	hist, err := history.New(
		base, histories, changeset.NewManager(changeset.DefaultRegistry()),
		validator, deployer,
		history.WithSnapshotCache(config.SnapshotCache()),
		history.WithLogger(logger),
	)
	if err != nil {
		mf.Close()
		return nil, err
	}

	mode := management.Async(queue)
	if config.Queue().Mode() == server.Sync {
		mode = management.Sync()
	}
	mf.service = management.New(
		hist, update.New(hist, logger, validators...), mode, logger,
		management.WithResponseExpiry(config.Queue().ResponseExpiry()),
	)

	if len(hooks.Update.After) != 0 {
		mf.service.UpdateListeners().Register("update-hooks", hook.Build[management.UpdateOutcome](hooks.Update))
	}
	if len(hooks.Deploy.After) != 0 {
		mf.service.DeployListeners().Register("deploy-hooks", hook.Build[management.DeployOutcome](hooks.Deploy))
	}
	return mf, nil
}

func (m *modelfab) Service() *management.Service {
	return m.service
}

func (m *modelfab) Config() *server.Config {
	return m.config
}

func (m *modelfab) Shared() bool {
	return m.pool != nil
}

func (m *modelfab) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.schema == nil {
		return context.WithCancel(ctx)
	}
	return m.schema.Context(ctx)
}

func (m *modelfab) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}
