package service

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"tg_admin_bot/internal/apiclient"
	"tg_admin_bot/internal/logging"
)

// userAPI is the slice of the API client the user service depends on.
type userAPI interface {
	GetMe(ctx context.Context, chatID int64) apiclient.Result
	ListUsers(ctx context.Context, chatID int64) apiclient.Result
	GetUser(ctx context.Context, chatID int64, username string) apiclient.Result
	RechargeUser(ctx context.Context, chatID int64, username string, amount float64) apiclient.Result
	AdjustBalance(ctx context.Context, chatID int64, username string, amount float64) apiclient.Result
}

// UserService exposes user lookup and balance mutation operations, converting
// amount arguments before they reach the client.
type UserService struct {
	api    userAPI
	logger *logrus.Entry
}

// NewUserService constructs a UserService.
func NewUserService(api userAPI, logger *logrus.Entry) *UserService {
	if logger == nil {
		logger = logging.Logger()
	}

	return &UserService{
		api:    api,
		logger: logger,
	}
}

// GetMe resolves the admin identity bound to the chat.
func (s *UserService) GetMe(ctx context.Context, chatID int64) apiclient.Result {
	res := s.api.GetMe(ctx, chatID)

	s.logger.WithFields(logging.Fields{
		"event":   "user_get_me",
		"chat_id": chatID,
		"status":  res.Status,
	}).Info("get me result")

	return res
}

// ListUsers fetches all users visible to the chat's identity.
func (s *UserService) ListUsers(ctx context.Context, chatID int64) apiclient.Result {
	res := s.api.ListUsers(ctx, chatID)

	s.logger.WithFields(logging.Fields{
		"event":   "user_list",
		"chat_id": chatID,
		"status":  res.Status,
	}).Info("list users result")

	return res
}

// GetUser fetches one user by username.
func (s *UserService) GetUser(ctx context.Context, chatID int64, username string) apiclient.Result {
	res := s.api.GetUser(ctx, chatID, username)

	s.logger.WithFields(logging.Fields{
		"event":    "user_get",
		"chat_id":  chatID,
		"username": username,
		"status":   res.Status,
	}).Info("get user result")

	return res
}

// Recharge adds amountInput to a user's balance. A non-numeric amount is
// rejected locally with a 400 result and no network call.
func (s *UserService) Recharge(ctx context.Context, chatID int64, username, amountInput string) apiclient.Result {
	amount, ok := parseAmount(amountInput)
	if !ok {
		s.logger.WithFields(logging.Fields{
			"event":   "user_recharge_invalid",
			"chat_id": chatID,
			"amount":  amountInput,
		}).Warn("invalid recharge amount")

		return invalidAmountResult()
	}

	res := s.api.RechargeUser(ctx, chatID, username, amount)

	s.logger.WithFields(logging.Fields{
		"event":    "user_recharge",
		"chat_id":  chatID,
		"username": username,
		"amount":   amount,
		"status":   res.Status,
	}).Info("recharge result")

	return res
}

// Adjust sets a user's balance to an absolute amount. A non-numeric amount is
// rejected locally with a 400 result and no network call.
func (s *UserService) Adjust(ctx context.Context, chatID int64, username, amountInput string) apiclient.Result {
	amount, ok := parseAmount(amountInput)
	if !ok {
		s.logger.WithFields(logging.Fields{
			"event":   "user_adjust_invalid",
			"chat_id": chatID,
			"amount":  amountInput,
		}).Warn("invalid adjust amount")

		return invalidAmountResult()
	}

	res := s.api.AdjustBalance(ctx, chatID, username, amount)

	s.logger.WithFields(logging.Fields{
		"event":    "user_adjust",
		"chat_id":  chatID,
		"username": username,
		"amount":   amount,
		"status":   res.Status,
	}).Info("adjust balance result")

	return res
}

func invalidAmountResult() apiclient.Result {
	return apiclient.Result{
		Status: http.StatusBadRequest,
		Body:   apiclient.Body{"detail": "Amount must be a number"},
	}
}
