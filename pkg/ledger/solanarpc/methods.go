package solanarpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/pkg/ledger"
)

func (s *service) GetBalance(ctx context.Context, address string) (uint64, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %s: %w", address, err)
	}

	var res *rpc.GetBalanceResult
	if err := s.call(ctx, "getBalance", func(ctx context.Context) (err error) {
		res, err = s.client.GetBalance(ctx, account, s.commitment())
		return err
	}); err != nil {
		return 0, err
	}
	return res.Value, nil
}

func (s *service) GetSignaturesForAddress(
	ctx context.Context, address string, limit int,
) ([]ledger.SignatureInfo, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %s: %w", address, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{Commitment: s.commitment()}
	if limit > 0 {
		opts.Limit = &limit
	}

	var res []*rpc.TransactionSignature
	if err := s.call(ctx, "getSignaturesForAddress", func(ctx context.Context) (err error) {
		res, err = s.client.GetSignaturesForAddressWithOpts(ctx, account, opts)
		return err
	}); err != nil {
		return nil, err
	}

	sigs := make([]ledger.SignatureInfo, 0, len(res))
	for _, r := range res {
		if r == nil {
			continue
		}
		sigs = append(sigs, ledger.SignatureInfo{
			Signature: r.Signature.String(),
			Slot:      r.Slot,
			Err:       r.Err,
			BlockTime: unixTime(r.BlockTime),
		})
	}
	return sigs, nil
}

// GetParsedTransaction returns nil if the node doesn't know the given
// transaction.
func (s *service) GetParsedTransaction(
	ctx context.Context, signature string,
) (*ledger.ParsedTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %s: %w", signature, err)
	}

	maxVersion := uint64(0)
	opts := &rpc.GetParsedTransactionOpts{
		Commitment:                     s.commitment(),
		MaxSupportedTransactionVersion: &maxVersion,
	}

	var res *rpc.GetParsedTransactionResult
	if err := s.call(ctx, "getTransaction", func(ctx context.Context) (err error) {
		res, err = s.client.GetParsedTransaction(ctx, sig, opts)
		return err
	}); err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toLedgerTransaction(signature, res), nil
}

func (s *service) GetLatestBlockhash(ctx context.Context) (*ledger.Blockhash, error) {
	var res *rpc.GetLatestBlockhashResult
	if err := s.call(ctx, "getLatestBlockhash", func(ctx context.Context) (err error) {
		res, err = s.client.GetLatestBlockhash(ctx, s.commitment())
		return err
	}); err != nil {
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, &ledger.RPCError{
			Method:  "getLatestBlockhash",
			Message: "missing blockhash in response",
		}
	}
	return &ledger.Blockhash{
		Hash:                 res.Value.Blockhash.String(),
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

func (s *service) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := s.call(ctx, "getBlockHeight", func(ctx context.Context) (err error) {
		height, err = s.client.GetBlockHeight(ctx, s.commitment())
		return err
	}); err != nil {
		return 0, err
	}
	return height, nil
}

func (s *service) SendRawTransaction(
	ctx context.Context, rawTx []byte,
) (string, error) {
	opts := rpc.TransactionOpts{PreflightCommitment: s.commitment()}

	var sig solana.Signature
	if err := s.call(ctx, "sendTransaction", func(ctx context.Context) (err error) {
		sig, err = s.client.SendRawTransactionWithOpts(ctx, rawTx, opts)
		return err
	}); err != nil {
		return "", err
	}
	return sig.String(), nil
}

// ConfirmTransaction polls the status of the given tx until it reaches the
// configured commitment or the block height exceeds the one after which
// the blockhash is no longer valid.
func (s *service) ConfirmTransaction(
	ctx context.Context, signature string, blockhash ledger.Blockhash,
) (interface{}, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %s: %w", signature, err)
	}

	for {
		status, err := s.getSignatureStatus(ctx, sig)
		if err != nil && !ledger.IsRateLimited(err) {
			return nil, err
		}
		if status != nil {
			if status.Err != nil {
				return status.Err, nil
			}
			if reachesCommitment(status, s.cfg.Commitment) {
				return nil, nil
			}
		}

		if err == nil {
			height, err := s.GetBlockHeight(ctx)
			if err != nil && !ledger.IsRateLimited(err) {
				return nil, err
			}
			if err == nil && height > blockhash.LastValidBlockHeight {
				return nil, fmt.Errorf(
					"%w: tx %s, last valid height %d, current %d",
					ledger.ErrBlockhashExpired, signature,
					blockhash.LastValidBlockHeight, height,
				)
			}
		} else {
			log.WithError(err).Debugf(
				"rate limited while confirming tx %s", signature,
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.cfg.Clock.TickAfter(s.cfg.ConfirmPollInterval):
		}
	}
}

func (s *service) getSignatureStatus(
	ctx context.Context, sig solana.Signature,
) (*rpc.SignatureStatusesResult, error) {
	var res *rpc.GetSignatureStatusesResult
	if err := s.call(ctx, "getSignatureStatuses", func(ctx context.Context) (err error) {
		res, err = s.client.GetSignatureStatuses(ctx, false, sig)
		return err
	}); err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(res.Value) <= 0 {
		return nil, nil
	}
	return res.Value[0], nil
}
