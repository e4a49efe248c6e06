// Command questgen generates multiple-choice and descriptive questions from
// a text document.
//
// The document is read from -input, or stdin when -input is empty, and the
// result is printed to stdout as JSON. Model credentials come from the
// environment or an optional .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/infrastructure/cache"
	"github.com/ahrav/go-qgen/infrastructure/lexicon"
	"github.com/ahrav/go-qgen/infrastructure/middleware"
	"github.com/ahrav/go-qgen/internal/application"
	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

type options struct {
	configPath     string
	envFile        string
	inputPath      string
	mcq            int
	descriptive    int
	seed           int64
	async          bool
	pollInterval   time.Duration
	metricsPath    string
	importOntology string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("questgen", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file; defaults are used when empty")
	fs.StringVar(&opts.envFile, "env", ".env", "optional dotenv file with API keys")
	fs.StringVar(&opts.inputPath, "input", "", "text file to read; stdin when empty")
	fs.IntVar(&opts.mcq, "mcq", 5, "number of multiple-choice questions")
	fs.IntVar(&opts.descriptive, "descriptive", 2, "number of descriptive questions")
	fs.Int64Var(&opts.seed, "seed", 0, "random seed; zero uses the config seed, then the clock")
	fs.BoolVar(&opts.async, "async", false, "run as a background job and poll its status")
	fs.DurationVar(&opts.pollInterval, "poll", time.Second, "status poll interval with -async")
	fs.StringVar(&opts.metricsPath, "metrics", "", "write Prometheus metrics to this file on exit")
	fs.StringVar(&opts.importOntology, "import-ontology", "", "load a YAML taxonomy into Neo4j and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.pollInterval <= 0 {
		return opts, fmt.Errorf("-poll must be positive")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// .env is optional.
	_ = godotenv.Load(opts.envFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "questgen:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	cfg := application.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = application.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if opts.importOntology != "" {
		return importOntology(ctx, cfg.Lexicon, opts.importOntology, log)
	}

	text, err := readInput(opts.inputPath, stdin)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)
	if opts.metricsPath != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(opts.metricsPath, reg); err != nil {
				log.Warn("failed to write metrics", zap.String("path", opts.metricsPath), zap.Error(err))
			}
		}()
	}

	var rdb *redis.Client
	if cfg.Cache.Kind == "redis" || cfg.Jobs.Store == "redis" {
		rdb, err = cache.NewRedisClient(ctx, os.Getenv(cfg.Cache.RedisURLEnv), log)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	deps := application.Dependencies{Metrics: metrics, Log: log}
	if rdb != nil {
		deps.Redis = rdb
	}
	registry := application.NewModelRegistry(application.NewModelLoader(cfg, deps), log)
	svc, err := application.NewService(cfg.Generation, registry, log,
		application.WithServiceMetrics(metrics), application.WithDefaultSeed(cfg.Seed))
	if err != nil {
		return err
	}

	req := domain.GenerationRequest{
		Text:             text,
		MCQCount:         opts.mcq,
		DescriptiveCount: opts.descriptive,
		Seed:             opts.seed,
	}

	if !opts.async {
		res, err := svc.Generate(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(stdout, res)
	}

	var backing ports.CacheStore = cache.NewMemoryStore()
	if cfg.Jobs.Store == "redis" {
		backing = cache.NewRedisStore(rdb, cfg.Cache.Prefix)
	}
	runner := application.NewJobRunner(svc, application.NewCacheJobStore(backing, cfg.Jobs.TTL), cfg.Jobs, metrics, log)
	job, err := submitAndPoll(ctx, runner, req, opts.pollInterval)
	if err != nil {
		return err
	}
	return writeJSON(stdout, job)
}

// submitAndPoll submits req and polls until the job leaves pending.
func submitAndPoll(ctx context.Context, runner *application.JobRunner, req domain.GenerationRequest, every time.Duration) (*application.Job, error) {
	id, err := runner.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		job, err := runner.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status != application.JobPending {
			return job, nil
		}
	}
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

func importOntology(ctx context.Context, cfg application.LexiconConfig, path string, log *zap.Logger) error {
	taxonomy, err := lexicon.LoadMemoryOntology(path)
	if err != nil {
		return err
	}
	graph, err := lexicon.NewNeo4jOntology(ctx, lexicon.Neo4jConfig{
		URI:      os.Getenv(cfg.Neo4j.URIEnv),
		User:     os.Getenv(cfg.Neo4j.UserEnv),
		Password: os.Getenv(cfg.Neo4j.PasswordEnv),
		Database: cfg.Neo4j.Database,
		Timeout:  cfg.Neo4j.Timeout,
	}, log)
	if err != nil {
		return err
	}
	defer graph.Close(context.WithoutCancel(ctx))

	if err := graph.Import(ctx, taxonomy.Synsets()); err != nil {
		return err
	}
	log.Info("ontology imported", zap.String("path", path), zap.Int("synsets", len(taxonomy.Synsets())))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
