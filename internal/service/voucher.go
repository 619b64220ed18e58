// Package service hosts the validation façades between command handlers and
// the API client. Services convert user-supplied arguments, reject bad input
// before it reaches the network, and return normalized results; they never
// return errors outward.
package service

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_admin_bot/internal/apiclient"
	"tg_admin_bot/internal/logging"
)

// voucherAPI is the slice of the API client the voucher service depends on.
type voucherAPI interface {
	GenerateVoucher(ctx context.Context, chatID int64, amount float64) apiclient.Result
}

// VoucherService validates voucher amounts and delegates creation to the API.
type VoucherService struct {
	api    voucherAPI
	logger *logrus.Entry
}

// NewVoucherService constructs a VoucherService.
func NewVoucherService(api voucherAPI, logger *logrus.Entry) *VoucherService {
	if logger == nil {
		logger = logging.Logger()
	}

	return &VoucherService{
		api:    api,
		logger: logger,
	}
}

// Generate parses amountInput and creates a voucher. A non-numeric or
// non-positive amount is rejected locally with a 400 result and no network
// call; otherwise the client's result is passed through unchanged.
func (s *VoucherService) Generate(ctx context.Context, chatID int64, amountInput string) apiclient.Result {
	amount, ok := parsePositiveAmount(amountInput)
	if !ok {
		s.logger.WithFields(logging.Fields{
			"event":   "voucher_amount_invalid",
			"chat_id": chatID,
			"amount":  amountInput,
		}).Warn("invalid amount for voucher")

		return apiclient.Result{
			Status: http.StatusBadRequest,
			Body:   apiclient.Body{"detail": "Amount must be a positive number"},
		}
	}

	res := s.api.GenerateVoucher(ctx, chatID, amount)

	s.logger.WithFields(logging.Fields{
		"event":   "voucher_generate",
		"chat_id": chatID,
		"amount":  amount,
		"status":  res.Status,
	}).Info("generate voucher result")

	return res
}

func parsePositiveAmount(input string) (float64, bool) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || amount <= 0 {
		return 0, false
	}

	return amount, true
}

func parseAmount(input string) (float64, bool) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, false
	}

	return amount, true
}
