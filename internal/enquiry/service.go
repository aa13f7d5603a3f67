// Package enquiry drives one inbound enquiry through qualification, answering,
// escalation and audit.
package enquiry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/answer"
	"github.com/weaveai/weave/internal/escalation"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/qualify"
	"github.com/weaveai/weave/pkg/utils"
)

// ReasonNoApprovedContent is the escalation reason when a qualified enquiry's question is refused.
const ReasonNoApprovedContent = "no approved content answers the question"

// RuleSource provides the current read-only rule set.
type RuleSource interface {
	Rules() []qualify.Rule
}

// Answerer produces safe answers from approved content.
type Answerer interface {
	GenerateSafeAnswer(ctx context.Context, query string) *answer.SafeAnswer
}

// Escalator hands an enquiry to a human.
type Escalator interface {
	Escalate(ctx context.Context, esc models.EscalationContext) escalation.Result
}

// AuditLog records enquiries without blocking.
type AuditLog interface {
	LogEnquiry(id string, data map[string]interface{})
}

// Request is an inbound enquiry from an upstream adapter.
type Request struct {
	Prospect models.Prospect    `json:"prospect"`
	Message  string             `json:"message"`
	Channel  models.Channel     `json:"channel"`
	Data     models.EnquiryData `json:"data"`
	History  []models.Message   `json:"history,omitempty"`
	Question string             `json:"question,omitempty"`
}

// Kind is the single visible outcome of an enquiry.
type Kind string

const (
	KindAnswer   Kind = "answer"
	KindRefusal  Kind = "refusal"
	KindHandoff  Kind = "handoff"
	KindRecorded Kind = "recorded"
)

// Outcome is what HandleEnquiry decided.
type Outcome struct {
	EnquiryID  string             `json:"enquiry_id"`
	Kind       Kind               `json:"kind"`
	Verdict    models.Verdict     `json:"verdict"`
	Decision   qualify.Decision   `json:"decision"`
	Reply      string             `json:"reply,omitempty"`
	Answer     *answer.SafeAnswer `json:"answer,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Escalation *escalation.Result `json:"escalation,omitempty"`
	History    []models.Message   `json:"history"`
}

// Service handles enquiries. It is safe for concurrent use; the only shared state is
// the rule source and the collaborators, which it never mutates.
type Service struct {
	rules     RuleSource
	answerer  Answerer
	escalator Escalator
	audit     AuditLog
	newID     func() string
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithIDGenerator replaces the enquiry id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service.
func NewService(rules RuleSource, answerer Answerer, escalator Escalator, audit AuditLog, opts ...Option) *Service {
	s := &Service{
		rules:     rules,
		answerer:  answerer,
		escalator: escalator,
		audit:     audit,
		newID:     func() string { return "ENQ-" + uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// HandleEnquiry qualifies the enquiry, answers a qualified prospect's question from approved
// content, escalates when a human is needed, and always records an audit entry. It never fails:
// every path resolves to exactly one Outcome kind.
func (s *Service) HandleEnquiry(ctx context.Context, req Request) *Outcome {
	id := s.newID()
	channel := req.Channel
	if !channel.Valid() {
		s.logger.Warn("Unknown channel, treating as website",
			zap.String("enquiry_id", id),
			zap.String("channel", string(channel)))
		channel = models.ChannelWebsite
	}

	history := append([]models.Message(nil), req.History...)
	if strings.TrimSpace(req.Message) != "" {
		history = append(history, models.Message{Role: models.RoleProspect, Message: req.Message, Timestamp: s.now().UTC()})
	}

	data := req.Data.Clone()
	decision := qualify.Evaluate(data, s.rules.Rules())
	out := &Outcome{
		EnquiryID: id,
		Kind:      KindRecorded,
		Verdict:   decision.Verdict,
		Decision:  decision,
	}
	s.logger.Info("Enquiry qualified",
		zap.String("enquiry_id", id),
		zap.String("verdict", string(decision.Verdict)),
		zap.Int("rule_index", decision.RuleIndex))

	switch decision.Verdict {
	case models.VerdictNeedsHuman:
		out.Kind = KindHandoff
		out.Reason = decision.Reason()
	case models.VerdictQualified:
		if q := strings.TrimSpace(req.Question); q != "" {
			ans := s.answerer.GenerateSafeAnswer(ctx, q)
			out.Answer = ans
			out.Reply = ans.Answer
			history = append(history, models.Message{Role: models.RoleSystem, Message: ans.Answer, Timestamp: s.now().UTC()})
			if ans.Refused {
				out.Kind = KindRefusal
				out.Reason = ReasonNoApprovedContent
			} else {
				out.Kind = KindAnswer
			}
		}
	}

	if out.Kind == KindHandoff || out.Kind == KindRefusal {
		res := s.escalator.Escalate(ctx, models.EscalationContext{
			EnquiryID:           id,
			Prospect:            req.Prospect,
			Channel:             channel,
			ConversationHistory: history,
			QualificationData:   data,
			QualificationStatus: decision.Verdict,
			Reason:              out.Reason,
		})
		out.Escalation = &res
	}

	out.History = history
	s.audit.LogEnquiry(id, auditData(req, channel, data, out))
	return out
}

func auditData(req Request, channel models.Channel, data models.EnquiryData, out *Outcome) map[string]interface{} {
	entry := map[string]interface{}{
		"prospect":             req.Prospect,
		"channel":              channel,
		"status":               out.Verdict,
		"outcome":              out.Kind,
		"rule_index":           out.Decision.RuleIndex,
		"qualification_data":   data,
		"conversation_history": out.History,
	}
	if out.Reason != "" {
		entry["reason"] = out.Reason
	}
	if req.Question != "" {
		entry["question"] = req.Question
	}
	if out.Answer != nil {
		entry["answer"] = out.Answer.Answer
		entry["refused"] = out.Answer.Refused
		entry["audit_trail"] = out.Answer.AuditTrail
		if out.Answer.Err != nil {
			entry["answer_error"] = out.Answer.Err.Error()
		}
	}
	if out.Escalation != nil {
		entry["escalation"] = out.Escalation
	}
	return entry
}
