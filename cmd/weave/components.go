package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/answer"
	"github.com/weaveai/weave/internal/audit"
	"github.com/weaveai/weave/internal/config"
	"github.com/weaveai/weave/internal/enquiry"
	"github.com/weaveai/weave/internal/escalation"
	"github.com/weaveai/weave/internal/generation"
	"github.com/weaveai/weave/internal/ingest"
	"github.com/weaveai/weave/internal/qualify"
	"github.com/weaveai/weave/internal/resolver"
	"github.com/weaveai/weave/internal/retrieval"
	"github.com/weaveai/weave/internal/server"
	"github.com/weaveai/weave/internal/storage"
)

// Components holds the answering, ingest and rule components shared by all commands.
type Components struct {
	Storage     storage.Storage
	Index       retrieval.Index
	Retriever   retrieval.Retriever
	Generator   generation.Generator
	Synthesizer *answer.Synthesizer
	Ingester    *ingest.Ingester
	Rules       *qualify.Snapshot
	closers     []func() error
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	var storeOpts []storage.Option
	switch cfg.Storage.BlobBackend {
	case "sqlite":
	case "s3":
		blobs, err := storage.NewS3BlobStore(ctx, storage.S3Options{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Prefix:    cfg.Storage.S3.Prefix,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize s3 blob store: %w", err))
		}
		storeOpts = append(storeOpts, storage.WithBlobStore(blobs))
	default:
		return fail(fmt.Errorf("unknown blob backend %q", cfg.Storage.BlobBackend))
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storeOpts...)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	c.Storage = store
	c.closers = append(c.closers, store.Close)

	index, err := retrieval.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize retrieval index: %w", err))
	}
	c.Index = index
	c.closers = append(c.closers, index.Close)
	c.Retriever = index
	if cfg.Retrieval.RemoteURL != "" {
		c.Retriever = retrieval.NewHTTPIndex(cfg.Retrieval.RemoteURL,
			retrieval.WithHTTPClient(&http.Client{Timeout: cfg.Retrieval.Timeout}),
			retrieval.WithLogger(logger))
		logger.Info("Using remote retrieval index", zap.String("url", cfg.Retrieval.RemoteURL))
	}

	if cfg.Generation.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; every answer will be the refusal message")
		c.Generator = generation.RefusingGenerator{Refusal: cfg.Answer.RefusalMessage}
	} else {
		gemini, err := generation.NewGeminiGenerator(ctx, cfg.Generation.APIKey,
			generation.WithModel(cfg.Generation.Model),
			generation.WithMaxTokens(cfg.Generation.MaxTokens),
			generation.WithLogger(logger))
		if err != nil {
			return fail(fmt.Errorf("failed to initialize generator: %w", err))
		}
		c.Generator = gemini
		c.closers = append(c.closers, gemini.Close)
	}

	res := resolver.New(store,
		resolver.WithHashVerification(cfg.Answer.VerifyContentHashOrDefault()),
		resolver.WithLogger(logger))
	c.Synthesizer, err = answer.New(c.Retriever, res, c.Generator, store, answer.Policy{
		Refusal:           cfg.Answer.RefusalMessage,
		TopK:              cfg.Retrieval.TopK,
		SafeTopK:          cfg.Retrieval.SafeTopK,
		RetrievalTimeout:  cfg.Retrieval.Timeout,
		GenerationTimeout: cfg.Generation.Timeout,
	}, answer.WithLogger(logger))
	if err != nil {
		return fail(err)
	}

	c.Ingester = ingest.NewIngester(store, index, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, ingest.WithLogger(logger))

	c.Rules, err = qualify.LoadSnapshot(cfg.Qualification.RulesPath, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to load qualification rules: %w", err))
	}
	return c, nil
}

// EnquiryPipeline holds the components only the server needs.
type EnquiryPipeline struct {
	Service     *enquiry.Service
	AuditLog    *audit.Logger
	AuditReader server.AuditReader
	sink        audit.Sink
}

// Close drains the audit logger before closing the sink.
func (p *EnquiryPipeline) Close() {
	p.AuditLog.Close()
	_ = p.sink.Close()
}

func initializeEnquiryPipeline(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*EnquiryPipeline, error) {
	sink, reader, err := newAuditSink(ctx, cfg.Audit)
	if err != nil {
		return nil, err
	}
	auditLog := audit.NewLogger(sink,
		audit.WithBufferSize(cfg.Audit.BufferSize),
		audit.WithTimeout(cfg.Audit.Timeout),
		audit.WithLogger(logger))

	client := &http.Client{}
	var notifier escalation.Notifier
	if cfg.Escalation.SlackWebhookURL != "" {
		notifier = escalation.NewSlackNotifier(cfg.Escalation.SlackWebhookURL, cfg.Escalation.HistoryLimit, client)
	} else {
		logger.Warn("SLACK_WEBHOOK_URL is not set; escalations will not notify anyone")
	}
	var replier escalation.Replier
	if cfg.Escalation.WhatsAppAPIURL != "" {
		replier = escalation.NewWhatsAppReplier(cfg.Escalation.WhatsAppAPIURL, cfg.Escalation.WhatsAppToken, client)
	}
	handoff := escalation.NewHandoff(notifier, replier,
		escalation.WithTimeouts(cfg.Escalation.NotifyTimeout, cfg.Escalation.ReplyTimeout),
		escalation.WithAckMessage(cfg.Escalation.AckMessage),
		escalation.WithLogger(logger))

	svc := enquiry.NewService(c.Rules, c.Synthesizer, handoff, auditLog, enquiry.WithLogger(logger))
	return &EnquiryPipeline{Service: svc, AuditLog: auditLog, AuditReader: reader, sink: sink}, nil
}

// newAuditSink opens the configured sink. The reader is nil for write-only backends.
func newAuditSink(ctx context.Context, cfg config.AuditConfig) (audit.Sink, server.AuditReader, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := audit.NewSQLiteSink(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize audit sink: %w", err)
		}
		return s, s, nil
	case "postgres":
		s, err := audit.NewPostgresSink(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize audit sink: %w", err)
		}
		return s, s, nil
	case "http":
		if cfg.ServiceURL == "" {
			return nil, nil, fmt.Errorf("audit backend http requires LOG_SERVICE_URL")
		}
		return audit.NewHTTPSink(cfg.ServiceURL, &http.Client{Timeout: cfg.Timeout}), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
}
