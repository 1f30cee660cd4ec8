package httpinterface

import (
	"github.com/vcard-network/depositd/internal/core/application"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/pkg/lamports"
)

type errorResponse struct {
	Error string `json:"error"`
}

type createDepositRequest struct {
	Lamports uint64 `json:"lamports"`
	Sol      string `json:"sol"`
	Usd      string `json:"usd"`
}

type addWebhookRequest struct {
	Topic    string `json:"topic" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
	Secret   string `json:"secret"`
}

type depositView struct {
	ID               string `json:"id"`
	DerivationIndex  uint64 `json:"derivation_index"`
	Address          string `json:"address"`
	ExpectedLamports uint64 `json:"expected_lamports"`
	ExpectedSol      string `json:"expected_sol"`
	Status           string `json:"status"`
	PaymentVerified  bool   `json:"payment_verified"`
	TxSignature      string `json:"tx_signature,omitempty"`
	AmountReceived   uint64 `json:"amount_received"`
	SweepStatus      string `json:"sweep_status"`
	SweepSignature   string `json:"sweep_signature,omitempty"`
	SweepError       string `json:"sweep_error,omitempty"`
	SweepAttempts    int    `json:"sweep_attempts"`
	CreatedAt        int64  `json:"created_at"`
	ExpiresAt        int64  `json:"expires_at,omitempty"`
	VerifiedAt       int64  `json:"verified_at,omitempty"`
}

type verificationView struct {
	Verified       bool   `json:"verified"`
	Signature      string `json:"signature,omitempty"`
	AmountReceived uint64 `json:"amount_received"`
	ObservedAt     int64  `json:"observed_at"`
	Outcome        string `json:"outcome"`
}

type sweepView struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

type checkResponse struct {
	Deposit      depositView       `json:"deposit"`
	Verification *verificationView `json:"verification,omitempty"`
	Sweep        *sweepView        `json:"sweep,omitempty"`
}

func newDepositView(d domain.Deposit) depositView {
	return depositView{
		ID:               d.ID,
		DerivationIndex:  d.DerivationIndex,
		Address:          d.Address,
		ExpectedLamports: d.ExpectedLamports,
		ExpectedSol:      lamports.LamportsToSol(d.ExpectedLamports).String(),
		Status:           d.Status.String(),
		PaymentVerified:  d.PaymentVerified,
		TxSignature:      d.TxSignature,
		AmountReceived:   d.AmountReceived,
		SweepStatus:      d.SweepStatus.String(),
		SweepSignature:   d.SweepSignature,
		SweepError:       d.SweepError,
		SweepAttempts:    d.SweepAttempts,
		CreatedAt:        d.CreatedAt,
		ExpiresAt:        d.ExpiresAt,
		VerifiedAt:       d.VerifiedAt,
	}
}

func newDepositViews(deposits []domain.Deposit) []depositView {
	views := make([]depositView, 0, len(deposits))
	for _, d := range deposits {
		views = append(views, newDepositView(d))
	}
	return views
}

func newVerificationView(v *application.PaymentVerification) *verificationView {
	if v == nil {
		return nil
	}
	return &verificationView{
		Verified:       v.Verified,
		Signature:      v.Signature.UnwrapOr(""),
		AmountReceived: v.AmountReceived,
		ObservedAt:     v.ObservedAt.Unix(),
		Outcome:        v.Outcome.String(),
	}
}

func newSweepView(s *application.SweepResult) *sweepView {
	if s == nil {
		return nil
	}
	return &sweepView{
		Success:   s.Success,
		Signature: s.Signature.UnwrapOr(""),
		Error:     s.Error,
	}
}
