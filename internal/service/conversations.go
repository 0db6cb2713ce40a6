package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"whatsrelay/internal/constants"
	appErrors "whatsrelay/internal/errors"
	"whatsrelay/internal/models"
	"whatsrelay/internal/validation"
)

// ConversationService serves the read side of the relay.
type ConversationService struct {
	store        MessageStore
	logger       *logrus.Logger
	queryTimeout time.Duration
}

func NewConversationService(store MessageStore, queryTimeoutSec int, logger *logrus.Logger) *ConversationService {
	if queryTimeoutSec <= 0 {
		queryTimeoutSec = constants.DefaultQueryTimeoutSec
	}
	return &ConversationService{
		store:        store,
		logger:       logger,
		queryTimeout: time.Duration(queryTimeoutSec) * time.Second,
	}
}

// ListConversations returns one entry per conversation, most recently active
// first.
func (s *ConversationService) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	conversations, err := s.store.ListConversations(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, appErrors.NewTimeoutError("list conversations", s.queryTimeout.String())
		}
		return nil, appErrors.NewStoreError("list conversations", err)
	}
	return conversations, nil
}

// MarkRead marks every unread incoming message of a conversation as read and
// returns the number of messages changed.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	conversationID = validation.NormalizeConversationID(conversationID)
	if err := validation.ValidateConversationID(conversationID); err != nil {
		return 0, err
	}

	updated, err := s.store.MarkConversationRead(ctx, conversationID)
	if err != nil {
		return 0, appErrors.NewStoreError("mark conversation read", err)
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldConversationID: maskConversation(ctx, conversationID),
		LogFieldCount:          updated,
	}).Debug("Marked conversation read")
	return updated, nil
}

// ListMessages returns one page of a conversation in chronological order.
// Zero page or limit select the defaults.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string, page, limit int) (*models.MessagePage, error) {
	conversationID = validation.NormalizeConversationID(conversationID)
	if err := validation.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if page == 0 {
		page = constants.DefaultPage
	}
	if limit == 0 {
		limit = constants.DefaultMessageLimit
	}
	if err := validation.ValidatePagination(page, limit); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	msgs, total, err := s.store.ListMessages(ctx, conversationID, (page-1)*limit, limit)
	if err != nil {
		return nil, appErrors.NewStoreError("list messages", err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}

	return &models.MessagePage{
		Messages:   msgs,
		Pagination: models.Pagination{Page: page, Limit: limit, Total: total},
	}, nil
}
