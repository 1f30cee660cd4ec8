package solanarpc

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/vcard-network/depositd/pkg/ledger"
)

var confirmationRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 0,
	rpc.ConfirmationStatusConfirmed: 1,
	rpc.ConfirmationStatusFinalized: 2,
}

// reachesCommitment returns whether the status meets the given commitment.
func reachesCommitment(
	status *rpc.SignatureStatusesResult, commitment ledger.Commitment,
) bool {
	// Nodes not reporting the status return null confirmations once the
	// transaction is rooted.
	if status.ConfirmationStatus == "" {
		return status.Confirmations == nil
	}
	return confirmationRank[status.ConfirmationStatus] >=
		confirmationRank[rpc.ConfirmationStatusType(commitment)]
}

func unixTime(t *solana.UnixTimeSeconds) *int64 {
	if t == nil {
		return nil
	}
	v := int64(*t)
	return &v
}

// parsedInfo is the shape of the "parsed" field of system program
// instructions. Lamports are decoded as a float because the rpc client
// decodes the instruction info into a generic map.
type parsedInfo struct {
	Type string `json:"type"`
	Info struct {
		Source      string  `json:"source"`
		Destination string  `json:"destination"`
		Lamports    float64 `json:"lamports"`
	} `json:"info"`
}

func toLedgerInstruction(p *rpc.ParsedInstruction) ledger.Instruction {
	ix := ledger.Instruction{
		ProgramID: p.ProgramId.String(),
		Program:   p.Program,
	}
	if p.Parsed == nil {
		return ix
	}

	// The parsed field is a plain string for some programs (ie. memo).
	buf, err := json.Marshal(p.Parsed)
	if err != nil || len(buf) <= 0 || buf[0] != '{' {
		return ix
	}
	info := parsedInfo{}
	if err := json.Unmarshal(buf, &info); err != nil {
		return ix
	}
	ix.Type = info.Type
	ix.Source = info.Info.Source
	ix.Destination = info.Info.Destination
	if info.Info.Lamports > 0 {
		ix.Lamports = uint64(info.Info.Lamports)
	}
	return ix
}

func toLedgerTransaction(
	signature string, res *rpc.GetParsedTransactionResult,
) *ledger.ParsedTransaction {
	tx := &ledger.ParsedTransaction{
		Signature: signature,
		Slot:      res.Slot,
		BlockTime: unixTime(res.BlockTime),
	}
	if res.Transaction != nil {
		for _, ix := range res.Transaction.Message.Instructions {
			if ix != nil {
				tx.Instructions = append(tx.Instructions, toLedgerInstruction(ix))
			}
		}
	}
	if res.Meta != nil {
		tx.Err = res.Meta.Err
		for _, inner := range res.Meta.InnerInstructions {
			for _, ix := range inner.Instructions {
				if ix != nil {
					tx.InnerInstructions = append(
						tx.InnerInstructions, toLedgerInstruction(ix),
					)
				}
			}
		}
	}
	return tx
}
