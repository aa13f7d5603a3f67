// Package answer turns a question into an answer bounded by approved content, or into
// the fixed refusal message when no approved content supports one.
package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/generation"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/retrieval"
	"github.com/weaveai/weave/pkg/utils"
)

// ContentResolver resolves every reference or none.
type ContentResolver interface {
	ResolveAll(ctx context.Context, refs []models.DocumentReference) ([][]byte, error)
}

// ApprovedLister lists the currently active approved documents.
type ApprovedLister interface {
	ListApprovedDocuments(ctx context.Context) ([]*models.Document, error)
}

// Policy is the immutable answering configuration.
type Policy struct {
	Refusal           string
	TopK              int
	SafeTopK          int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
}

func (p *Policy) applyDefaults() {
	if p.TopK <= 0 {
		p.TopK = 3
	}
	if p.SafeTopK <= 0 {
		p.SafeTopK = 5
	}
	if p.RetrievalTimeout <= 0 {
		p.RetrievalTimeout = 5 * time.Second
	}
	if p.GenerationTimeout <= 0 {
		p.GenerationTimeout = 30 * time.Second
	}
}

// Answer is the result of AnswerWithRetrieval. Err records why an answer was refused
// when the cause was a failure rather than missing content.
type Answer struct {
	Text       string                     `json:"answer"`
	Refused    bool                       `json:"refused"`
	References []models.DocumentReference `json:"references"`
	Err        error                      `json:"-"`
}

// AuditTrail records what a safe answer was built from.
type AuditTrail struct {
	Query         string    `json:"query"`
	Timestamp     time.Time `json:"timestamp"`
	DocumentsUsed []string  `json:"documents_used"`
}

// SafeAnswer is the result of GenerateSafeAnswer.
type SafeAnswer struct {
	Answer     string             `json:"answer"`
	Sources    []*models.Document `json:"sources"`
	AuditTrail AuditTrail         `json:"audit_trail"`
	Refused    bool               `json:"refused"`
	Err        error              `json:"-"`
}

// Synthesizer runs retrieval, resolution, generation and citation.
type Synthesizer struct {
	retriever retrieval.Retriever
	resolver  ContentResolver
	generator generation.Generator
	approved  ApprovedLister
	policy    Policy
	system    string
	logger    *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// New returns a Synthesizer. policy.Refusal must be set.
func New(retriever retrieval.Retriever, resolver ContentResolver, generator generation.Generator, approved ApprovedLister, policy Policy, opts ...Option) (*Synthesizer, error) {
	if strings.TrimSpace(policy.Refusal) == "" {
		return nil, &models.ConfigError{Msg: "refusal message is required"}
	}
	policy.applyDefaults()
	s := &Synthesizer{
		retriever: retriever,
		resolver:  resolver,
		generator: generator,
		approved:  approved,
		policy:    policy,
		system:    SystemInstruction(policy.Refusal),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s, nil
}

// Refusal returns the configured refusal message.
func (s *Synthesizer) Refusal() string {
	return s.policy.Refusal
}

// AnswerWithRetrieval answers query from the top references. Empty retrieval, a retrieval
// failure or timeout, any resolution failure, and any generation failure all yield the
// refusal message verbatim.
func (s *Synthesizer) AnswerWithRetrieval(ctx context.Context, query string) *Answer {
	refs, err := s.retrieve(ctx, query, s.policy.TopK)
	if err != nil {
		return s.refuse(err)
	}
	if len(refs) == 0 {
		return s.refuse(nil)
	}
	return s.synthesize(ctx, query, refs)
}

// GenerateSafeAnswer answers only from references whose content hash belongs to a currently
// active approved document. If none do, it refuses without resolving or generating.
func (s *Synthesizer) GenerateSafeAnswer(ctx context.Context, query string) *SafeAnswer {
	out := &SafeAnswer{
		Sources:    []*models.Document{},
		AuditTrail: AuditTrail{Query: query, Timestamp: time.Now().UTC(), DocumentsUsed: []string{}},
	}

	docs, err := s.approved.ListApprovedDocuments(ctx)
	if err != nil {
		s.logger.Warn("Failed to list approved documents", zap.Error(err))
		return out.refused(s.policy.Refusal, err)
	}
	byHash := make(map[string][]*models.Document, len(docs))
	for _, d := range docs {
		if d.Active() {
			byHash[d.ContentHash] = append(byHash[d.ContentHash], d)
		}
	}

	refs, err := s.retrieve(ctx, query, s.policy.SafeTopK)
	if err != nil {
		return out.refused(s.policy.Refusal, err)
	}
	safe := make([]models.DocumentReference, 0, len(refs))
	for _, r := range refs {
		if _, ok := byHash[r.ContentHash]; ok {
			safe = append(safe, r)
		}
	}
	if len(safe) == 0 {
		if len(refs) > 0 {
			s.logger.Debug("Retrieved references are not approved",
				zap.String("query", query),
				zap.Int("retrieved", len(refs)))
		}
		return out.refused(s.policy.Refusal, nil)
	}

	ans := s.synthesize(ctx, query, safe)
	if ans.Refused {
		return out.refused(ans.Text, ans.Err)
	}

	seen := make(map[string]struct{})
	for _, r := range safe {
		for _, d := range byHash[r.ContentHash] {
			if _, ok := seen[d.ID]; ok {
				continue
			}
			seen[d.ID] = struct{}{}
			out.Sources = append(out.Sources, d)
			out.AuditTrail.DocumentsUsed = append(out.AuditTrail.DocumentsUsed, d.ID)
		}
	}
	out.Answer = ans.Text
	return out
}

func (a *SafeAnswer) refused(refusal string, err error) *SafeAnswer {
	a.Answer = refusal
	a.Refused = true
	a.Err = err
	return a
}

func (s *Synthesizer) retrieve(ctx context.Context, query string, topK int) ([]models.DocumentReference, error) {
	rctx, cancel := context.WithTimeout(ctx, s.policy.RetrievalTimeout)
	defer cancel()

	res, err := s.retriever.RetrieveReferences(rctx, query, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Retrieval timed out", zap.String("query", query), zap.Duration("timeout", s.policy.RetrievalTimeout))
		} else {
			s.logger.Warn("Retrieval failed", zap.String("query", query), zap.Error(err))
		}
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	refs := res.References
	if len(refs) > topK {
		refs = refs[:topK]
	}
	return refs, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, query string, refs []models.DocumentReference) *Answer {
	contents, err := s.resolver.ResolveAll(ctx, refs)
	if err != nil {
		s.logger.Warn("Content resolution failed", zap.String("query", query), zap.Error(err))
		return s.refuse(err)
	}

	gctx, cancel := context.WithTimeout(ctx, s.policy.GenerationTimeout)
	defer cancel()
	text, err := s.generator.Generate(gctx, s.system, UserPrompt(query, contents))
	if err != nil {
		s.logger.Warn("Generation failed", zap.String("query", query), zap.Error(err))
		return s.refuse(err)
	}
	if isRefusal(text, s.policy.Refusal) {
		return s.refuse(nil)
	}

	return &Answer{
		Text:       text + Citations(refs),
		References: refs,
	}
}

// quotePairs are the wrappings a model puts around a verbatim reply.
var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}, {"`", "`"}}

// isRefusal reports whether text is the refusal message, ignoring surrounding
// whitespace and quotes.
func isRefusal(text, refusal string) bool {
	t := strings.TrimSpace(text)
	for {
		if t == refusal {
			return true
		}
		unquoted := false
		for _, q := range quotePairs {
			if len(t) >= len(q[0])+len(q[1]) && strings.HasPrefix(t, q[0]) && strings.HasSuffix(t, q[1]) {
				t = strings.TrimSpace(t[len(q[0]) : len(t)-len(q[1])])
				unquoted = true
				break
			}
		}
		if !unquoted {
			return false
		}
	}
}

func (s *Synthesizer) refuse(err error) *Answer {
	return &Answer{
		Text:       s.policy.Refusal,
		Refused:    true,
		References: []models.DocumentReference{},
		Err:        err,
	}
}
