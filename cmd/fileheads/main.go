// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command fileheads manages a directory-backed head store.
//
//	fileheads [-config file] [-dir dir] [-create] [-hash] <command> [keys...]
//
// Commands:
//
//	add KEY...       record heads
//	remove KEY...    forget heads
//	is-head KEY...   print membership; exit status 1 if any key is not a head
//	list             print all heads, sorted
//	serve            run the HTTP API until SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"fileHeads/pkg/config"
	"fileHeads/pkg/fileheads"
	"fileHeads/pkg/heads"
	"fileHeads/pkg/log"
	"fileHeads/pkg/metrics"
	"fileHeads/pkg/nodehash"
	"fileHeads/pkg/workerpool"

	"github.com/prometheus/client_golang/prometheus"
)

const usage = `usage: fileheads [flags] <add|remove|is-head|list|serve> [keys...]`

// errUsage is returned for bad invocations
var errUsage = errors.New(usage)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit status
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fileheads", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to YAML config file")
	dir := fs.String("dir", "", "head store directory (overrides config)")
	create := fs.Bool("create", false, "create the directory (and parents) if missing")
	hash := fs.Bool("hash", false, "keys are 40 character hex node hashes")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadConfigOrDefault(*configFile, *dir)
	if err != nil {
		fmt.Fprintf(stderr, "fileheads: %v\n", err)
		return 1
	}
	if *create {
		cfg.Store.Create = true
	}

	if err := log.InitFromConfig(&cfg.Store.Log); err != nil {
		fmt.Fprintf(stderr, "fileheads: init logger: %v\n", err)
		return 1
	}
	logger := log.GetLogger().Named("fileheads")
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	pool := workerpool.New(workerpool.Config{
		Workers:        cfg.Store.Pool.Workers,
		QueueSize:      cfg.Store.Pool.QueueSize,
		RateLimitQPS:   cfg.Store.Pool.RateLimitQPS,
		RateLimitBurst: cfg.Store.Pool.RateLimitBurst,
	}, workerpool.WithLogger(logger.Zap()), workerpool.WithMetrics(m))
	defer pool.Close()

	env := &environment{
		cfg:      cfg,
		pool:     pool,
		registry: registry,
		metrics:  m,
		logger:   logger,
		stdout:   stdout,
	}

	command, keys := fs.Arg(0), fs.Args()[1:]
	if *hash {
		err = execute(ctx, env, keyType[nodehash.NodeHash]{
			parse:  nodehash.FromHex,
			format: nodehash.NodeHash.String,
			less:   func(a, b nodehash.NodeHash) bool { return a.Compare(b) < 0 },
		}, command, keys)
	} else {
		err = execute(ctx, env, keyType[string]{
			parse:  func(s string) (string, error) { return s, nil },
			format: func(s string) string { return s },
			less:   func(a, b string) bool { return a < b },
		}, command, keys)
	}

	var notHead errNotHead
	switch {
	case err == nil:
		return 0
	case errors.As(err, &notHead):
		return 1
	case errors.Is(err, errUsage):
		fs.Usage()
		return 2
	default:
		logger.Error("command failed", log.Operation(command), log.Err(err))
		fmt.Fprintf(stderr, "fileheads: %v\n", err)
		return 1
	}
}

// environment holds what every command shares
type environment struct {
	cfg      *config.Config
	pool     *workerpool.Pool
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *log.Logger
	stdout   io.Writer
}

// keyType converts between command line arguments and keys
type keyType[K any] struct {
	parse  func(string) (K, error)
	format func(K) string
	less   func(a, b K) bool
}

// errNotHead reports keys that is-head found missing
type errNotHead []string

func (e errNotHead) Error() string {
	return "not a head: " + strings.Join(e, ", ")
}

// openStore opens (or creates) the configured store
func openStore[K any](env *environment) (*fileheads.Store[K], heads.Heads[K], error) {
	opts := []fileheads.Option{
		fileheads.WithLogger(env.logger.Zap()),
		fileheads.WithMetrics(env.metrics),
		fileheads.WithSkipUndecodable(env.cfg.Store.SkipUndecodable),
	}

	var (
		store *fileheads.Store[K]
		err   error
	)
	if env.cfg.Store.Create {
		store, err = fileheads.Create[K](env.cfg.Store.Dir, env.pool, opts...)
	} else {
		store, err = fileheads.Open[K](env.cfg.Store.Dir, env.pool, opts...)
	}
	if err != nil {
		return nil, nil, err
	}

	if env.cfg.Store.Serialized {
		return store, fileheads.NewSerialized(store), nil
	}
	return store, store, nil
}

func execute[K any](ctx context.Context, env *environment, kt keyType[K], command string, args []string) error {
	switch command {
	case "add", "remove", "is-head":
		if len(args) == 0 {
			return fmt.Errorf("%s: at least one key is required: %w", command, errUsage)
		}
	case "list", "serve":
		if len(args) != 0 {
			return fmt.Errorf("%s takes no keys: %w", command, errUsage)
		}
	default:
		return fmt.Errorf("unknown command %q: %w", command, errUsage)
	}

	keys := make([]K, 0, len(args))
	for _, arg := range args {
		k, err := kt.parse(arg)
		if err != nil {
			return fmt.Errorf("invalid key %q: %w", arg, err)
		}
		keys = append(keys, k)
	}

	store, h, err := openStore[K](env)
	if err != nil {
		return err
	}

	switch command {
	case "add":
		return waitAll(ctx, keys, h.Add)
	case "remove":
		return waitAll(ctx, keys, h.Remove)
	case "is-head":
		return isHead(ctx, env.stdout, h, args, keys)
	case "list":
		sorted, err := fileheads.Sorted(ctx, h.Heads(), kt.less)
		if err != nil {
			return err
		}
		for _, k := range sorted {
			fmt.Fprintln(env.stdout, kt.format(k))
		}
		return nil
	default:
		return serve(ctx, env, kt, store, h)
	}
}

// waitAll dispatches op for every key before waiting on any of them
func waitAll[K any](ctx context.Context, keys []K, op func(K) *workerpool.Future[struct{}]) error {
	futures := make([]*workerpool.Future[struct{}], len(keys))
	for i, k := range keys {
		futures[i] = op(k)
	}

	var errs []error
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isHead[K any](ctx context.Context, out io.Writer, h heads.Heads[K], args []string, keys []K) error {
	futures := make([]*workerpool.Future[bool], len(keys))
	for i, k := range keys {
		futures[i] = h.IsHead(k)
	}

	var missing errNotHead
	for i, f := range futures {
		ok, err := f.Wait(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%t\n", args[i], ok)
		if !ok {
			missing = append(missing, args[i])
		}
	}
	if len(missing) > 0 {
		return missing
	}
	return nil
}
