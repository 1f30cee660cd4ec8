package application

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/pkg/depositwallet"
	"github.com/vcard-network/depositd/pkg/ledger"
)

// SweepResult reports the outcome of a sweep. Error is set only when
// Success is false.
type SweepResult struct {
	Success   bool
	Signature fn.Option[string]
	Error     string
}

// FundSweeper drains deposit addresses to the master custody address.
type FundSweeper interface {
	// Sweep moves the whole balance of the address owning the given key,
	// minus the fee buffer, to masterAddress. It never fails, errors are
	// reported in the result.
	Sweep(
		ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
	) SweepResult
	// SweepNotify is like Sweep, onSubmit is called with the signature of the
	// sweep tx once submitted and before waiting for its confirmation.
	SweepNotify(
		ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
		onSubmit func(signature string),
	) SweepResult
	// SweepFundsToMaster is like Sweep for an untagged key, either base64 or
	// a JSON byte array.
	SweepFundsToMaster(
		ctx context.Context, encodedPrivateKey, masterAddress string,
	) SweepResult
}

type fundSweeper struct {
	ledgerSvc ledger.Service
}

// NewFundSweeper returns a FundSweeper submitting txs to the given ledger.
func NewFundSweeper(ledgerSvc ledger.Service) (FundSweeper, error) {
	if ledgerSvc == nil {
		return nil, ErrNullLedgerService
	}
	return &fundSweeper{ledgerSvc}, nil
}

func (s *fundSweeper) SweepFundsToMaster(
	ctx context.Context, encodedPrivateKey, masterAddress string,
) SweepResult {
	return s.Sweep(
		ctx, depositwallet.SniffEncodedKey(encodedPrivateKey), masterAddress,
	)
}

func (s *fundSweeper) Sweep(
	ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
) SweepResult {
	return s.SweepNotify(ctx, key, masterAddress, nil)
}

func (s *fundSweeper) SweepNotify(
	ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
	onSubmit func(signature string),
) SweepResult {
	signature, err := s.sweep(ctx, key, masterAddress, onSubmit)
	if err != nil {
		sweepsTotal.WithLabelValues("failed").Inc()
		return SweepResult{
			Success:   false,
			Signature: fn.None[string](),
			Error:     err.Error(),
		}
	}

	sweepsTotal.WithLabelValues("success").Inc()
	return SweepResult{
		Success:   true,
		Signature: fn.Some(signature),
	}
}

func (s *fundSweeper) sweep(
	ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
	onSubmit func(signature string),
) (string, error) {
	privateKey, err := key.Decode()
	if err != nil {
		return "", err
	}
	from := privateKey.PublicKey()

	balance, err := s.ledgerSvc.GetBalance(ctx, from.String())
	if err != nil {
		return "", fmt.Errorf("failed to get balance: %w", err)
	}
	if balance == 0 {
		return "", ErrNoFundsToSweep
	}
	if balance <= SweepFeeBuffer {
		return "", ErrInsufficientBalanceAfterFees
	}
	amount := balance - SweepFeeBuffer

	master, err := solana.PublicKeyFromBase58(masterAddress)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidMasterAddress, err)
	}

	blockhash, err := s.ledgerSvc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	rawTx, err := buildSweepTx(privateKey, master, amount, blockhash.Hash)
	if err != nil {
		return "", err
	}

	signature, err := s.ledgerSvc.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return "", fmt.Errorf("failed to submit sweep tx: %w", err)
	}
	if onSubmit != nil {
		onSubmit(signature)
	}

	txErr, err := s.ledgerSvc.ConfirmTransaction(ctx, signature, *blockhash)
	if err != nil {
		return "", fmt.Errorf("failed to confirm sweep tx %s: %w", signature, err)
	}
	if txErr != nil {
		return "", fmt.Errorf("%w: %v", ErrSweepExecution, txErr)
	}

	sweptLamports.Add(float64(amount))
	log.WithFields(log.Fields{
		"from":      from.String(),
		"to":        masterAddress,
		"lamports":  amount,
		"signature": signature,
	}).Info("swept deposit funds")
	return signature, nil
}

// buildSweepTx returns the serialized tx transferring amount from the
// address of the given key to master. The deposit address pays the fee and
// is the only signer.
func buildSweepTx(
	privateKey solana.PrivateKey, master solana.PublicKey,
	amount uint64, recentBlockhash string,
) ([]byte, error) {
	from := privateKey.PublicKey()
	hash, err := solana.HashFromBase58(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("invalid blockhash %s: %w", recentBlockhash, err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(amount, from, master).Build(),
		},
		hash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build sweep tx: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &privateKey
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign sweep tx: %w", err)
	}

	return tx.MarshalBinary()
}
