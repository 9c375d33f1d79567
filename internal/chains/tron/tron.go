package tron

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/fbsobreira/gotron-sdk/pkg/client"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"tron-gateway/internal/domain"
	"tron-gateway/internal/retry"
)

const (
	// transferSelector is the 4-byte id of transfer(address,uint256).
	transferSelector = "a9059cbb"

	// defaultTransferEnergy is assumed when the node returns no estimate.
	defaultTransferEnergy = 65000
)

// Client is the TRON network gateway. Transaction building and broadcasting
// go over gRPC, account and history queries over the TronGrid REST API.
type Client struct {
	grpcClient *client.GrpcClient
	httpClient *HTTPClient
	network    string
	retryCfg   retry.Config
	logger     *zap.Logger
}

func NewClient(apiKey, network string, logger *zap.Logger) (*Client, error) {
	var grpcURL, httpURL string

	switch network {
	case "mainnet":
		grpcURL = "grpc.trongrid.io:50051"
		httpURL = "https://api.trongrid.io"
	case "shasta":
		grpcURL = "grpc.shasta.trongrid.io:50051"
		httpURL = "https://api.shasta.trongrid.io"
	case "nile":
		grpcURL = "grpc.nile.trongrid.io:50051"
		httpURL = "https://api.nile.trongrid.io"
	default:
		return nil, &domain.ConfigurationError{Key: "TRON_NETWORK", Reason: fmt.Sprintf("unsupported network %q", network)}
	}

	if network == "mainnet" {
		logger.Warn("mainnet active, transactions spend real TRX")
	}

	grpcClient := client.NewGrpcClient(grpcURL)
	grpcClient.SetAPIKey(apiKey)
	if err := grpcClient.Start(grpc.WithTransportCredentials(insecure.NewCredentials())); err != nil {
		return nil, fmt.Errorf("failed to start TRON gRPC client: %w", err)
	}

	logger.Info("TRON client initialized",
		zap.String("network", network),
		zap.String("grpc_url", grpcURL),
		zap.String("http_url", httpURL))

	return &Client{
		grpcClient: grpcClient,
		httpClient: NewHTTPClient(httpURL, apiKey, logger),
		network:    network,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger,
	}, nil
}

// Stop closes the gRPC connection.
func (c *Client) Stop() {
	if c.grpcClient != nil {
		c.grpcClient.Stop()
		c.logger.Info("TRON gRPC client stopped")
	}
}

func (c *Client) Network() string { return c.network }

// TrxBalance returns the native balance in sun. An address with no on-chain
// history has a zero balance.
func (c *Client) TrxBalance(ctx context.Context, addr string) (*big.Int, error) {
	var info *AccountInfo
	err := retry.Do(ctx, c.retryCfg, c.logger, "trx_balance", func(ctx context.Context) error {
		var err error
		info, err = c.httpClient.GetAccountInfo(ctx, addr)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	return big.NewInt(info.Balance), nil
}

// TokenBalance returns the TRC-20 balance in the token's smallest unit.
func (c *Client) TokenBalance(ctx context.Context, addr, contractAddress string) (*big.Int, error) {
	var balanceStr string
	err := retry.Do(ctx, c.retryCfg, c.logger, "token_balance", func(ctx context.Context) error {
		var err error
		balanceStr, err = c.httpClient.GetTokenBalance(ctx, addr, contractAddress)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}

	balance, ok := new(big.Int).SetString(balanceStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance format: %s", balanceStr)
	}
	return balance, nil
}

// EstimateTransferEnergy estimates the energy a TRC-20 transfer would burn,
// via a read-only invocation of the token contract.
func (c *Client) EstimateTransferEnergy(ctx context.Context, from, to, contractAddress string, amountWei *big.Int) (int64, error) {
	parameter, err := encodeTransferParams(to, amountWei)
	if err != nil {
		return 0, err
	}

	var result *ConstantCallResult
	err = retry.Do(ctx, c.retryCfg, c.logger, "estimate_energy", func(ctx context.Context) error {
		var err error
		result, err = c.httpClient.TriggerConstantContract(ctx, from, contractAddress,
			"transfer(address,uint256)", parameter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate energy: %w", err)
	}
	if !result.Result.Result {
		return 0, fmt.Errorf("constant call rejected: %s", result.Result.Message)
	}

	if result.EnergyUsed == 0 {
		c.logger.Debug("no energy estimate returned, using default",
			zap.Int64("default_energy", int64(defaultTransferEnergy)))
		return defaultTransferEnergy, nil
	}
	return result.EnergyUsed, nil
}

// ChainParameters returns the current network prices in sun.
func (c *Client) ChainParameters(ctx context.Context) (domain.ChainParameters, error) {
	var energy, bandwidth int64
	err := retry.Do(ctx, c.retryCfg, c.logger, "chain_parameters", func(ctx context.Context) error {
		var err error
		energy, bandwidth, err = c.httpClient.GetChainParameters(ctx)
		return err
	})
	if err != nil {
		return domain.ChainParameters{}, fmt.Errorf("failed to get chain parameters: %w", err)
	}
	return domain.ChainParameters{
		EnergyPriceSun:    energy,
		BandwidthPriceSun: bandwidth,
		FetchedAt:         time.Now(),
	}, nil
}

// SendTrx builds, signs and broadcasts a native transfer. amountSun is in sun.
// Returns the transaction hash.
func (c *Client) SendTrx(ctx context.Context, from, to string, amountSun int64, privateKeyHex string) (string, error) {
	c.logger.Info("sending TRX",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("amount_sun", amountSun))

	tx, err := c.grpcClient.Transfer(from, to, amountSun)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}
	if tx == nil || tx.Transaction == nil {
		return "", fmt.Errorf("transaction creation returned empty result")
	}
	if tx.Result != nil && tx.Result.Code != 0 {
		return "", fmt.Errorf("transaction creation failed: %s", string(tx.Result.Message))
	}

	return c.signAndBroadcast(tx.Transaction, privateKeyHex)
}

// SendToken builds, signs and broadcasts a TRC-20 transfer of amountWei.
// Returns the transaction hash.
func (c *Client) SendToken(ctx context.Context, from, to, contractAddress string, amountWei *big.Int, privateKeyHex string) (string, error) {
	c.logger.Info("sending TRC20 transfer",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("contract", contractAddress),
		zap.String("amount_wei", amountWei.String()))

	parameter, err := encodeTransferParams(to, amountWei)
	if err != nil {
		return "", err
	}
	data := transferSelector + parameter

	fromAddr, err := address.Base58ToAddress(from)
	if err != nil {
		return "", fmt.Errorf("invalid from address: %w", err)
	}
	contractAddr, err := address.Base58ToAddress(contractAddress)
	if err != nil {
		return "", fmt.Errorf("invalid contract address: %w", err)
	}

	tx, err := c.grpcClient.TriggerContract(
		fromAddr.String(),
		contractAddr.String(),
		data,
		"0",
		int64(0),
		int64(0),
		"",
		int64(0),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}
	if tx.Result != nil && tx.Result.Code != 0 {
		return "", fmt.Errorf("transaction build failed: %s", string(tx.Result.Message))
	}

	return c.signAndBroadcast(tx.Transaction, privateKeyHex)
}

// TokenTransfers returns recent TRC-20 transfers touching the address for
// one token contract, newest first.
func (c *Client) TokenTransfers(ctx context.Context, addr, contractAddress string, limit int) ([]domain.TokenTransfer, error) {
	var records []TRC20TransferRecord
	err := retry.Do(ctx, c.retryCfg, c.logger, "token_transfers", func(ctx context.Context) error {
		var err error
		records, err = c.httpClient.GetTRC20Transfers(ctx, addr, contractAddress, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get token transfers: %w", err)
	}

	transfers := make([]domain.TokenTransfer, 0, len(records))
	for _, rec := range records {
		if rec.Type != "" && rec.Type != "Transfer" {
			continue
		}
		transfers = append(transfers, domain.TokenTransfer{
			TxHash:          rec.TransactionID,
			From:            rec.From,
			To:              rec.To,
			ContractAddress: rec.TokenInfo.Address,
			AmountWei:       rec.Value,
			Timestamp:       time.Unix(rec.BlockTimestamp/1000, 0),
		})
	}
	return transfers, nil
}

// Confirmations returns the transaction's block and how many blocks sit on
// top of it. A transaction not yet in a block has zeroes for both.
func (c *Client) Confirmations(ctx context.Context, txHash string) (domain.TxConfirmation, error) {
	txInfo, err := c.grpcClient.GetTransactionInfoByID(txHash)
	if err != nil {
		return domain.TxConfirmation{}, fmt.Errorf("failed to get transaction info: %w", err)
	}
	if txInfo.BlockNumber == 0 {
		return domain.TxConfirmation{}, nil
	}

	nowBlock, err := c.grpcClient.GetNowBlock()
	if err != nil {
		return domain.TxConfirmation{}, fmt.Errorf("failed to get current block: %w", err)
	}
	if nowBlock.BlockHeader == nil || nowBlock.BlockHeader.RawData == nil {
		return domain.TxConfirmation{}, fmt.Errorf("current block has no header")
	}

	confirmations := nowBlock.BlockHeader.RawData.Number - txInfo.BlockNumber
	if confirmations < 0 {
		confirmations = 0
	}
	return domain.TxConfirmation{
		BlockNumber:   txInfo.BlockNumber,
		Confirmations: confirmations,
	}, nil
}

// encodeTransferParams ABI-encodes the (address,uint256) arguments of a
// TRC-20 transfer: the 0x41 prefix is stripped and both values left-padded
// to 32 bytes.
func encodeTransferParams(to string, amountWei *big.Int) (string, error) {
	toAddr, err := address.Base58ToAddress(to)
	if err != nil {
		return "", fmt.Errorf("invalid to address: %w", err)
	}

	toParam := common.LeftPadBytes(toAddr.Bytes()[1:], 32)
	amountParam := common.LeftPadBytes(amountWei.Bytes(), 32)
	return hex.EncodeToString(toParam) + hex.EncodeToString(amountParam), nil
}
