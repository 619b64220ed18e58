package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_admin_bot/internal/apiclient"
)

type fakeVoucherAPI struct {
	calls  int
	chatID int64
	amount float64
	result apiclient.Result
}

func (f *fakeVoucherAPI) GenerateVoucher(_ context.Context, chatID int64, amount float64) apiclient.Result {
	f.calls++
	f.chatID = chatID
	f.amount = amount
	return f.result
}

func TestGenerateRejectsInvalidAmounts(t *testing.T) {
	cases := []string{"abc", "", "-5", "0", "1.2.3"}

	for _, input := range cases {
		t.Run("amount="+input, func(t *testing.T) {
			hookLogger, hook := logtest.NewNullLogger()
			api := &fakeVoucherAPI{}
			svc := NewVoucherService(api, logrus.NewEntry(hookLogger))

			res := svc.Generate(context.Background(), 42, input)

			if api.calls != 0 {
				t.Fatalf("expected no network call for input %q", input)
			}

			if res.Status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Status)
			}

			if res.Detail() != "Amount must be a positive number" {
				t.Fatalf("unexpected detail %q", res.Detail())
			}

			if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel {
				t.Fatalf("expected warn log for invalid amount")
			}
		})
	}
}

func TestGeneratePassesResultThrough(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	api := &fakeVoucherAPI{result: apiclient.Result{
		Status: http.StatusOK,
		Body:   apiclient.Body{"code": "ABC123"},
	}}
	svc := NewVoucherService(api, logrus.NewEntry(hookLogger))

	res := svc.Generate(context.Background(), 42, "5")

	if api.calls != 1 {
		t.Fatalf("expected exactly one client call, got %d", api.calls)
	}
	if api.chatID != 42 || api.amount != 5 {
		t.Fatalf("expected chat 42 amount 5, got %d %v", api.chatID, api.amount)
	}

	if res.Status != http.StatusOK || res.StringField("code") != "ABC123" {
		t.Fatalf("expected client result unchanged, got %d %v", res.Status, res.Body)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.InfoLevel {
		t.Fatalf("expected info log for generate result")
	}
	if entry.Data["chat_id"] != int64(42) || entry.Data["status"] != http.StatusOK {
		t.Fatalf("expected chat_id and status in log, got %v", entry.Data)
	}
}

func TestGenerateAcceptsDecimalAmounts(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	api := &fakeVoucherAPI{result: apiclient.Result{Status: http.StatusOK}}
	svc := NewVoucherService(api, logrus.NewEntry(hookLogger))

	svc.Generate(context.Background(), 42, " 2.50 ")

	if api.amount != 2.5 {
		t.Fatalf("expected parsed amount 2.5, got %v", api.amount)
	}
}
