// Copyright 2025 Kadir Pekel
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

// Command caseflow-server runs the document intake pipeline: the
// Ingress API, the Coordinator's per-document worker pool, and the
// Summary Engine, all wired against one configuration file.
//
// Usage:
//
//	caseflow-server --config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/caseflow/internal/analyze"
	"github.com/kadirpekel/caseflow/internal/authn"
	"github.com/kadirpekel/caseflow/internal/blobstore"
	"github.com/kadirpekel/caseflow/internal/blobstore/fsstore"
	"github.com/kadirpekel/caseflow/internal/blobstore/s3store"
	"github.com/kadirpekel/caseflow/internal/cachefs"
	"github.com/kadirpekel/caseflow/internal/catalog"
	"github.com/kadirpekel/caseflow/internal/config"
	"github.com/kadirpekel/caseflow/internal/coordinator"
	"github.com/kadirpekel/caseflow/internal/extract"
	"github.com/kadirpekel/caseflow/internal/extract/docxextract"
	"github.com/kadirpekel/caseflow/internal/extract/mediaextract"
	"github.com/kadirpekel/caseflow/internal/extract/pdfextract"
	"github.com/kadirpekel/caseflow/internal/extract/textextract"
	"github.com/kadirpekel/caseflow/internal/indexer"
	"github.com/kadirpekel/caseflow/internal/indexer/chromemindexer"
	"github.com/kadirpekel/caseflow/internal/indexer/qdrantindexer"
	"github.com/kadirpekel/caseflow/internal/ingress"
	"github.com/kadirpekel/caseflow/internal/llm"
	"github.com/kadirpekel/caseflow/internal/logging"
	"github.com/kadirpekel/caseflow/internal/progressbus"
	"github.com/kadirpekel/caseflow/internal/progressws"
	"github.com/kadirpekel/caseflow/internal/staleness"
	"github.com/kadirpekel/caseflow/internal/summary"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "override the process log level (debug, info, warn, error)")
	flag.Parse()

	logging.Init(logging.ParseLevel(os.Getenv("LOG_LEVEL")), os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		logging.Init(logging.ParseLevel(*logLevel), os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := build(ctx, cfg)
	if err != nil {
		slog.Error("wiring server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("caseflow-server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// build wires every component the intake pipeline needs: the Catalog,
// Blob Store, Cache FS, Extractor registry, LLM-backed Analyzer and
// Summary Engine, retrieval Indexer, Coordinator, and the Ingress API
// that fronts all of it.
func build(ctx context.Context, cfg *config.Config) (*ingress.Server, func(), error) {
	pool := config.NewDBPool()
	db, err := pool.Get(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog database: %w", err)
	}

	cat, err := catalog.Open(ctx, db, cfg.Database.Dialect())
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}

	cases := catalog.NewCaseRepo(cat)
	documents := catalog.NewDocumentRepo(cat)

	blobs, err := buildBlobStore(ctx, &cfg.Storage)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("building blob store: %w", err)
	}

	janitor, err := cachefs.NewJanitor(cfg.Storage.WorkspaceRoot)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("building cache fs janitor: %w", err)
	}
	go func() {
		if err := janitor.Run(ctx); err != nil {
			slog.Warn("cache fs janitor stopped", "error", err)
		}
	}()

	llmRegistry := llm.NewRegistry()
	if err := llmRegistry.LoadFromConfig(cfg.LLMs); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("loading LLM providers: %w", err)
	}
	analyzerProvider, err := llmRegistry.Get("analyzer")
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("resolving analyzer LLM provider: %w", err)
	}
	summarizerProvider, err := llmRegistry.Get("summarizer")
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("resolving summarizer LLM provider: %w", err)
	}

	analyzer := analyze.New(analyzerProvider, cfg.Intake.ExtractTextCharLimit, cfg.Intake.AnalyzerTimeout)

	idx, err := buildIndexer(&cfg.Indexer)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("building indexer: %w", err)
	}

	bus := progressbus.New()
	stale := staleness.New(cases)

	extractors := extract.NewRegistry(
		pdfextract.New(),
		docxextract.New(),
		textextract.New(),
		mediaextract.New(),
	)

	coord := coordinator.New(
		documents, blobs, extractors, analyzer, idx, bus, stale,
		cfg.Storage.WorkspaceRoot, cfg.Intake.MaxConcurrentDocuments,
	)

	summaryEngine := summary.New(
		cases, documents, summarizerProvider, bus,
		cfg.Intake.SummaryBatchSize, cfg.Intake.SummaryBatchDelay, cfg.Intake.SummaryLLMTimeout,
		cfg.Storage.WorkspaceRoot,
	)

	var validator *authn.Validator
	if !cfg.Auth.Disabled {
		validator, err = authn.NewValidator(ctx, &cfg.Auth)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("building auth validator: %w", err)
		}
	}

	srv := &ingress.Server{
		Cases:          cases,
		Documents:      documents,
		Blobs:          blobs,
		Coordinator:    coord,
		Summaries:      summaryEngine,
		Progress:       progressws.New(bus),
		Auth:           validator,
		WorkspaceRoot:  cfg.Storage.WorkspaceRoot,
		PresignExpiry:  cfg.Storage.PresignExpiry,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	}

	cleanup := func() {
		if err := pool.Close(); err != nil {
			slog.Warn("closing database pool", "error", err)
		}
	}
	return srv, cleanup, nil
}

func buildBlobStore(ctx context.Context, cfg *config.StorageConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "s3":
		return s3store.New(ctx, cfg.S3Bucket, cfg.S3Region)
	case "fs", "":
		return fsstore.New(cfg.FSBlobRoot)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q (supported: fs, s3)", cfg.Backend)
	}
}

func buildIndexer(cfg *config.IndexerConfig) (indexer.Indexer, error) {
	switch cfg.Provider {
	case "qdrant":
		return qdrantindexer.New(cfg.QdrantHost, cfg.QdrantPort, "", false)
	case "chromem", "":
		return chromemindexer.New(cfg.ChromemPersistPath)
	default:
		return nil, fmt.Errorf("unsupported indexer provider %q (supported: chromem, qdrant)", cfg.Provider)
	}
}
