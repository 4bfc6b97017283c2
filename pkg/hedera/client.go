package hedera

import (
	"context"
	"fmt"
	"time"

	hiero "github.com/hashgraph/hedera-sdk-go/v2"
	"go.uber.org/zap"
)

// Ledger is the contract the core services consume. Every call either returns
// a transaction reference with a final status or fails; no partial state is
// modeled. Callers treat any error after a submission may have reached the
// network as requiring reconciliation, not as a presumed failure.
type Ledger interface {
	SubmitMessage(ctx context.Context, topicID string, message []byte) (*SubmitResult, error)
	TransferHbar(ctx context.Context, fromAccount, toAccount string, amount float64) (*TxResult, error)
	MintTokens(ctx context.Context, tokenID string, amount int64) (*TxResult, error)
	BurnTokens(ctx context.Context, tokenID string, amount int64) (*TxResult, error)
	AccountBalance(ctx context.Context, accountID string) (*Balance, error)
}

// SubmitResult is the outcome of a consensus message submission.
type SubmitResult struct {
	TransactionID      string `json:"transaction_id"`
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Status             string `json:"status"`
}

// TxResult is the outcome of a transfer, mint or burn.
type TxResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Balance holds an account's native balance and token holdings.
type Balance struct {
	Hbars  float64           `json:"hbars"`
	Tokens map[string]uint64 `json:"tokens"`
}

// Config contains Hedera network configuration.
type Config struct {
	OperatorID  string `json:"operator_id"`
	OperatorKey string `json:"operator_key"`
	Network     string `json:"network"` // "testnet", "mainnet", "previewnet"
	TopicID     string `json:"topic_id"`
	TokenID     string `json:"token_id"`
}

// Client wraps the Hedera SDK behind the Ledger interface.
type Client struct {
	client *hiero.Client
	cfg    *Config
	logger *zap.Logger
}

// NewClient creates a Hedera client for the configured network and operator.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.OperatorID == "" || cfg.OperatorKey == "" {
		return nil, fmt.Errorf("hedera operator credentials not configured")
	}

	var client *hiero.Client
	switch cfg.Network {
	case "mainnet":
		client = hiero.ClientForMainnet()
	case "previewnet":
		client = hiero.ClientForPreviewnet()
	default:
		client = hiero.ClientForTestnet()
	}

	operatorID, err := hiero.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator account id: %w", err)
	}
	operatorKey, err := hiero.PrivateKeyFromString(cfg.OperatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator private key: %w", err)
	}
	client.SetOperator(operatorID, operatorKey)

	logger.Info("Hedera client initialized",
		zap.String("network", cfg.Network),
		zap.String("operator", cfg.OperatorID))

	return &Client{client: client, cfg: cfg, logger: logger}, nil
}

// SubmitMessage submits a message to a consensus topic and waits for the
// record so the consensus timestamp can be bound to the local row.
func (c *Client) SubmitMessage(ctx context.Context, topicID string, message []byte) (*SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tid, err := hiero.TopicIDFromString(topicID)
	if err != nil {
		return nil, fmt.Errorf("invalid topic id %q: %w", topicID, err)
	}

	resp, err := hiero.NewTopicMessageSubmitTransaction().
		SetTopicID(tid).
		SetMessage(message).
		SetMaxTransactionFee(hiero.NewHbar(2)).
		Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to submit message to topic %s: %w", topicID, err)
	}

	record, err := resp.GetRecord(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record for %s: %w", resp.TransactionID.String(), err)
	}

	return &SubmitResult{
		TransactionID:      resp.TransactionID.String(),
		ConsensusTimestamp: record.ConsensusTimestamp.UTC().Format(time.RFC3339Nano),
		Status:             record.Receipt.Status.String(),
	}, nil
}

// TransferHbar moves hbar between two accounts. The transaction is signed by
// the operator, which acts as custodian for user accounts.
func (c *Client) TransferHbar(ctx context.Context, fromAccount, toAccount string, amount float64) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from, err := hiero.AccountIDFromString(fromAccount)
	if err != nil {
		return nil, fmt.Errorf("invalid source account %q: %w", fromAccount, err)
	}
	to, err := hiero.AccountIDFromString(toAccount)
	if err != nil {
		return nil, fmt.Errorf("invalid destination account %q: %w", toAccount, err)
	}

	resp, err := hiero.NewTransferTransaction().
		AddHbarTransfer(from, hiero.HbarFrom(-amount, hiero.HbarUnits.Hbar)).
		AddHbarTransfer(to, hiero.HbarFrom(amount, hiero.HbarUnits.Hbar)).
		SetMaxTransactionFee(hiero.NewHbar(2)).
		Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer %.4f hbar from %s to %s: %w", amount, fromAccount, toAccount, err)
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", resp.TransactionID.String(), err)
	}

	c.logger.Info("hbar transfer executed",
		zap.String("transaction_id", resp.TransactionID.String()),
		zap.String("from", fromAccount),
		zap.String("to", toAccount),
		zap.Float64("amount", amount))

	return &TxResult{
		TransactionID: resp.TransactionID.String(),
		Status:        receipt.Status.String(),
	}, nil
}

// MintTokens mints fungible tokens into the token treasury.
func (c *Client) MintTokens(ctx context.Context, tokenID string, amount int64) (*TxResult, error) {
	return c.tokenSupplyChange(ctx, tokenID, amount, true)
}

// BurnTokens burns fungible tokens from the token treasury.
func (c *Client) BurnTokens(ctx context.Context, tokenID string, amount int64) (*TxResult, error) {
	return c.tokenSupplyChange(ctx, tokenID, amount, false)
}

func (c *Client) tokenSupplyChange(ctx context.Context, tokenID string, amount int64, mint bool) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("token amount must be positive, got %d", amount)
	}

	tid, err := hiero.TokenIDFromString(tokenID)
	if err != nil {
		return nil, fmt.Errorf("invalid token id %q: %w", tokenID, err)
	}

	var resp hiero.TransactionResponse
	if mint {
		resp, err = hiero.NewTokenMintTransaction().
			SetTokenID(tid).
			SetAmount(uint64(amount)).
			SetMaxTransactionFee(hiero.NewHbar(20)).
			Execute(c.client)
	} else {
		resp, err = hiero.NewTokenBurnTransaction().
			SetTokenID(tid).
			SetAmount(uint64(amount)).
			SetMaxTransactionFee(hiero.NewHbar(20)).
			Execute(c.client)
	}
	if err != nil {
		op := "burn"
		if mint {
			op = "mint"
		}
		return nil, fmt.Errorf("failed to %s %d tokens of %s: %w", op, amount, tokenID, err)
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", resp.TransactionID.String(), err)
	}

	return &TxResult{
		TransactionID: resp.TransactionID.String(),
		Status:        receipt.Status.String(),
	}, nil
}

// AccountBalance queries an account's hbar balance and its holding of the
// configured offset token.
func (c *Client) AccountBalance(ctx context.Context, accountID string) (*Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc, err := hiero.AccountIDFromString(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}

	balance, err := hiero.NewAccountBalanceQuery().
		SetAccountID(acc).
		Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance for %s: %w", accountID, err)
	}

	tokens := make(map[string]uint64)
	if c.cfg.TokenID != "" {
		if tid, err := hiero.TokenIDFromString(c.cfg.TokenID); err == nil {
			tokens[c.cfg.TokenID] = balance.Tokens.Get(tid)
		}
	}

	return &Balance{
		Hbars:  balance.Hbars.As(hiero.HbarUnits.Hbar),
		Tokens: tokens,
	}, nil
}

// Close releases the underlying network client.
func (c *Client) Close() error {
	return c.client.Close()
}
