package config

import "time"

// DefaultRefusalMessage is returned verbatim whenever no approved content supports an answer.
const DefaultRefusalMessage = "I can't confirm that from our approved documentation. I'm escalating this to a team member who can help."

// DefaultAckMessage is sent to prospects on two-way channels when an enquiry is escalated.
const DefaultAckMessage = "A team member will be in touch shortly to help with your enquiry. They have full context of our conversation."

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/weave/data/db/content.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/weave/data/indices/bleve"
	}
	if cfg.Storage.BlobBackend == "" {
		cfg.Storage.BlobBackend = "sqlite"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Storage.S3.Prefix == "" {
		cfg.Storage.S3.Prefix = "content"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.SafeTopK == 0 {
		cfg.Retrieval.SafeTopK = 5
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 5 * time.Second
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-1.5-flash"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 500
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}
	if cfg.Answer.RefusalMessage == "" {
		cfg.Answer.RefusalMessage = DefaultRefusalMessage
	}
	if cfg.Escalation.NotifyTimeout == 0 {
		cfg.Escalation.NotifyTimeout = 10 * time.Second
	}
	if cfg.Escalation.ReplyTimeout == 0 {
		cfg.Escalation.ReplyTimeout = 10 * time.Second
	}
	if cfg.Escalation.HistoryLimit == 0 {
		cfg.Escalation.HistoryLimit = 5
	}
	if cfg.Escalation.AckMessage == "" {
		cfg.Escalation.AckMessage = DefaultAckMessage
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "sqlite"
	}
	if cfg.Audit.DatabasePath == "" {
		cfg.Audit.DatabasePath = "/usr/local/var/weave/data/db/audit.db"
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 256
	}
	if cfg.Audit.Timeout == 0 {
		cfg.Audit.Timeout = 5 * time.Second
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 200
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 20
	}
	if cfg.Ingest.ApprovedBy == "" {
		cfg.Ingest.ApprovedBy = "inbox"
	}
}
