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

package main

import (
	"context"
	"errors"
	"io"

	"fileHeads/pkg/fileheads"
	"fileHeads/pkg/health"
	"fileHeads/pkg/heads"
	"fileHeads/pkg/httpapi"
	"fileHeads/pkg/log"
	"fileHeads/pkg/metrics"
	"fileHeads/pkg/reliability"
)

// serve runs the HTTP API, and the monitoring server when enabled, until a
// signal arrives or ctx ends
func serve[K any](ctx context.Context, env *environment, kt keyType[K], store *fileheads.Store[K], h heads.Heads[K]) error {
	cfg := env.cfg.Store
	zl := env.logger.Zap()

	var users map[string]string
	if cfg.Auth.Enable {
		users = cfg.Auth.Users
	}

	api, err := httpapi.NewServer(httpapi.Config[K]{
		Store:          h,
		ParseKey:       kt.parse,
		FormatKey:      kt.format,
		Less:           kt.less,
		Address:        cfg.HTTP.ListenAddress,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxKeyBytes:    cfg.HTTP.MaxKeyBytes,
		Users:          users,
		Logger:         zl,
		Metrics:        env.metrics,
	})
	if err != nil {
		return err
	}

	hs := health.NewHealthServer(zl)
	hs.RegisterChecker(health.NewDirectoryChecker("directory", store.Dir()))
	hs.RegisterChecker(health.NewDiskSpaceChecker("disk", store.Dir(),
		cfg.Monitoring.MinFreeDiskGB, cfg.Monitoring.DiskWarnPercent))
	hs.RegisterChecker(health.NewStoreChecker("store", func(ctx context.Context) error {
		// 读取第一个条目即可验证列举与解码
		_, err := h.Heads().Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gs := reliability.NewGracefulShutdown(cfg.Reliability.ShutdownTimeout)
	errc := make(chan error, 2)

	reliability.SafeGo("httpapi", func() {
		if err := api.Start(); err != nil {
			errc <- err
			cancel()
		}
	})
	gs.RegisterHook(reliability.PhaseStopAccepting, func(ctx context.Context) error {
		hs.SetDraining()
		return api.Shutdown(ctx)
	})

	gs.RegisterHook(reliability.PhaseDrainWork, func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			env.pool.Close()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if cfg.Monitoring.EnablePrometheus {
		ms := metrics.NewMetricsServer(cfg.Monitoring.ListenAddress, env.registry, zl, hs.Routes())
		reliability.SafeGo("metrics-server", func() {
			if err := ms.Start(); err != nil {
				errc <- err
				cancel()
			}
		})
		gs.RegisterHook(reliability.PhaseCloseResources, ms.Shutdown)
	}

	env.logger.Info("serving head store",
		log.Path(store.Dir()),
		log.String("address", cfg.HTTP.ListenAddress),
		log.Bool("serialized", cfg.Serialized),
		log.Bool("auth", cfg.Auth.Enable))

	shutdownErr := gs.Wait(ctx)

	errs := []error{shutdownErr}
	for {
		select {
		case err := <-errc:
			errs = append(errs, err)
		default:
			return errors.Join(errs...)
		}
	}
}
