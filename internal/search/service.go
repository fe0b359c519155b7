// Package search runs grounded searches and follow-up turns against
// server-held conversations.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mohammad-safakhou/gemsearch/internal/format"
	"github.com/mohammad-safakhou/gemsearch/internal/helpers"
	"github.com/mohammad-safakhou/gemsearch/internal/metrics"
	"github.com/mohammad-safakhou/gemsearch/models"
	"github.com/mohammad-safakhou/gemsearch/provider"
	"github.com/mohammad-safakhou/gemsearch/session"
)

// Operation names used for upstream latency.
const (
	OpSearch   = "search"
	OpFollowUp = "follow_up"
)

const (
	msgQueryRequired    = "query is required"
	msgFollowUpRequired = "Both sessionId and query are required"
	msgSessionNotFound  = "Chat session not found"
)

// Service ties the AI gateway, the session store and the answer formatter
// together. Metrics may be nil.
type Service struct {
	gateway   provider.Gateway
	store     session.Store
	formatter *format.Formatter
	metrics   *metrics.Metrics
}

func NewService(gateway provider.Gateway, store session.Store, formatter *format.Formatter, m *metrics.Metrics) *Service {
	if formatter == nil {
		formatter = format.New()
	}
	return &Service{
		gateway:   gateway,
		store:     store,
		formatter: formatter,
		metrics:   m,
	}
}

// StartSearch opens a new conversation, asks query and stores the
// conversation only once a complete answer is ready.
func (s *Service) StartSearch(ctx context.Context, query string) (*models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Message: msgQueryRequired}
	}

	conv, err := s.gateway.StartConversation(ctx)
	if err != nil {
		return nil, upstream(err)
	}

	start := time.Now()
	reply, err := conv.SendMessage(ctx, query)
	s.metrics.ObserveUpstream(OpSearch, time.Since(start), err)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil, upstream(err)
	}

	summary, sources, err := s.render(reply)
	if err != nil {
		log.Warn().Err(err).Msg("search answer could not be formatted")
		return nil, err
	}

	sess, err := s.store.Create(conv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store chat session")
	}

	log.Info().
		Str("session_id", sess.ID()).
		Int("sources", len(sources)).
		Dur("took", time.Since(start)).
		Msg("search answered")

	return &models.SearchResult{
		SessionID: sess.ID(),
		Summary:   summary,
		Sources:   sources,
	}, nil
}

// FollowUp sends query as the next turn of an existing session. Turns on
// one session are answered in arrival order.
func (s *Service) FollowUp(ctx context.Context, sessionID, query string) (*models.FollowUpResult, error) {
	if sessionID == "" || strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Message: msgFollowUpRequired}
	}

	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, &models.NotFoundError{Message: msgSessionNotFound}
	}

	logger := log.With().Str("session_id", sessionID).Logger()

	start := time.Now()
	reply, err := sess.Send(ctx, query)
	s.metrics.ObserveUpstream(OpFollowUp, time.Since(start), err)
	if err != nil {
		logger.Warn().Err(err).Msg("follow-up failed")
		return nil, upstream(err)
	}

	summary, sources, err := s.render(reply)
	if err != nil {
		logger.Warn().Err(err).Msg("follow-up answer could not be formatted")
		return nil, err
	}

	logger.Info().
		Int("sources", len(sources)).
		Dur("took", time.Since(start)).
		Msg("follow-up answered")

	return &models.FollowUpResult{Summary: summary, Sources: sources}, nil
}

func (s *Service) render(reply models.Reply) (string, []models.Source, error) {
	summary, err := s.formatter.Format(reply.Text)
	if err != nil {
		return "", nil, err
	}
	sources := helpers.ExtractSources(reply.Grounding)
	s.metrics.ObserveSources(len(sources))
	return summary, sources, nil
}

// upstream keeps typed errors intact and wraps anything else, including
// context cancellation, as an upstream failure.
func upstream(err error) error {
	var ue *models.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &models.UpstreamError{Message: err.Error(), Err: err}
}
