package ledger

import "context"

// SystemProgramID is the id of the native program moving lamports.
const SystemProgramID = "11111111111111111111111111111111"

// Commitment is the level of finality requested to the ledger.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// SignatureInfo is an entry of the signature history of an address.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	// Err is the transaction-level error, nil if the transaction succeeded.
	Err       interface{}
	BlockTime *int64
}

// Failed returns whether the transaction failed on chain.
func (s SignatureInfo) Failed() bool {
	return s.Err != nil
}

// Instruction is a decoded instruction of a parsed transaction. Transfer
// related fields are populated only for native transfers.
type Instruction struct {
	ProgramID   string
	Program     string
	Type        string
	Source      string
	Destination string
	Lamports    uint64
}

// IsNativeTransfer returns whether the instruction moves lamports.
func (i Instruction) IsNativeTransfer() bool {
	if i.ProgramID != SystemProgramID {
		return false
	}
	return i.Type == "transfer" || i.Type == "transferWithSeed"
}

// ParsedTransaction is a transaction with its instructions decoded.
type ParsedTransaction struct {
	Signature         string
	Slot              uint64
	BlockTime         *int64
	Err               interface{}
	Instructions      []Instruction
	InnerInstructions []Instruction
}

// NativeTransfersTo returns the native transfers crediting the given
// address, top-level instructions first.
func (t ParsedTransaction) NativeTransfersTo(address string) []Instruction {
	transfers := make([]Instruction, 0)
	for _, list := range [][]Instruction{t.Instructions, t.InnerInstructions} {
		for _, ix := range list {
			if ix.IsNativeTransfer() && ix.Destination == address {
				transfers = append(transfers, ix)
			}
		}
	}
	return transfers
}

// Blockhash is a recent blockhash along with the last block height at
// which a transaction referencing it can be included.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}

// Service is the representation of the ledger RPC endpoint, treated as an
// unreliable and rate-limited dependency.
type Service interface {
	// GetBalance returns the balance in lamports of the given address.
	GetBalance(ctx context.Context, address string) (uint64, error)
	// GetSignaturesForAddress returns up to limit signatures of txs involving
	// the given address, most recent first.
	GetSignaturesForAddress(
		ctx context.Context, address string, limit int,
	) ([]SignatureInfo, error)
	// GetParsedTransaction returns the decoded transaction identified by the
	// given signature, or nil if it is not found.
	GetParsedTransaction(
		ctx context.Context, signature string,
	) (*ParsedTransaction, error)
	// GetLatestBlockhash returns a fresh blockhash with its expiry height.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
	// GetBlockHeight returns the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)
	// SendRawTransaction submits a serialized signed transaction and
	// returns its signature.
	SendRawTransaction(ctx context.Context, rawTx []byte) (string, error)
	// ConfirmTransaction waits until the transaction is confirmed or the
	// blockhash expires. The returned txErr is the transaction-level error
	// reported by the ledger, nil on success.
	ConfirmTransaction(
		ctx context.Context, signature string, blockhash Blockhash,
	) (txErr interface{}, err error)
}
