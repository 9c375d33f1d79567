package usecase

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tron-gateway/internal/domain"
)

type transferFixture struct {
	gateway   *fakeGateway
	wallets   *fakeWalletStore
	transfers *fakeTransferStore
	notifier  *fakeNotifier
	svc       *TransferService
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	gateway := newFakeGateway()
	// Deterministic quotes: no network state, no estimation, fallback gas
	// 15 TRX * 0.10 = 1.50 USDT.
	gateway.chainParamsErr = errors.New("down")
	gateway.energyErr = errors.New("down")

	wallets := newFakeWalletStore()
	transfers := newFakeTransferStore()
	notifier := newFakeNotifier()

	registry, err := domain.NewTokenRegistry("nile")
	require.NoError(t, err)
	cache := NewNetworkStateCache(10 * time.Minute)
	fees := NewFeeService(gateway, cache, registry, testFeeConfig(), masterAddr, zap.NewNop())
	gas := NewGasService(gateway, testGasConfig(), masterAddr, "masterkey", zap.NewNop())

	svc := NewTransferService(wallets, transfers, gateway, fees, gas, registry,
		notifier, masterAddr, time.Millisecond, zap.NewNop())

	return &transferFixture{
		gateway:   gateway,
		wallets:   wallets,
		transfers: transfers,
		notifier:  notifier,
		svc:       svc,
	}
}

func (f *transferFixture) addWallet(t *testing.T, address string, usdtBalance string) *domain.Wallet {
	t.Helper()
	wallet := &domain.Wallet{Address: address, PrivateKeyHex: "deadbeef"}
	require.NoError(t, f.wallets.Create(context.Background(), wallet))

	wei := decimal.RequireFromString(usdtBalance).Shift(6).BigInt()
	f.gateway.mu.Lock()
	f.gateway.tokenBalances[address] = wei
	f.gateway.mu.Unlock()
	return wallet
}

func TestCreateTransferPersistsPending(t *testing.T) {
	f := newTransferFixture(t)
	wallet := f.addWallet(t, "TWalletA", "200")

	transfer, err := f.svc.Create(context.Background(), wallet.ID, decimal.NewFromInt(100), "order-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, transfer.Status)
	assert.Equal(t, masterAddr, transfer.ToAddress)
	// The order amount moves; gas 1.5 and commission 1 (floored) are
	// bookkeeping only.
	assert.True(t, transfer.Amount.Equal(decimal.NewFromInt(100)), transfer.Amount.String())
	assert.True(t, transfer.OrderAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, transfer.GasCost.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, transfer.Commission.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "order-1", transfer.ReferenceID)

	stored, err := f.svc.GetByID(context.Background(), transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	// Creation is announced.
	require.Len(t, f.notifier.outgoing, 1)
	assert.Equal(t, domain.StatusPending, f.notifier.outgoing[0].Status)
}

func TestCreateTransferValidation(t *testing.T) {
	f := newTransferFixture(t)
	wallet := f.addWallet(t, "TWalletA", "200")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, wallet.ID, decimal.Zero, "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.Create(ctx, wallet.ID, decimal.NewFromInt(10), "bad ref!")
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.Create(ctx, 999, decimal.NewFromInt(10), "")
	var werr *domain.WalletNotFoundError
	require.ErrorAs(t, err, &werr)
}

func TestCreateTransferInsufficientBalance(t *testing.T) {
	f := newTransferFixture(t)
	// Balance covers the order but not order + gas + commission.
	wallet := f.addWallet(t, "TWalletA", "100")

	_, err := f.svc.Create(context.Background(), wallet.ID, decimal.NewFromInt(100), "")

	var berr *domain.InsufficientBalanceError
	require.ErrorAs(t, err, &berr)
	assert.True(t, berr.Required.Equal(decimal.RequireFromString("102.5")))
	assert.True(t, berr.Available.Equal(decimal.NewFromInt(100)))
}

func TestPreviewMatchesCreate(t *testing.T) {
	f := newTransferFixture(t)
	wallet := f.addWallet(t, "TWalletA", "500")
	ctx := context.Background()

	preview, err := f.svc.Preview(ctx, wallet.ID, decimal.NewFromInt(100), "ref-1")
	require.NoError(t, err)

	transfer, err := f.svc.Create(ctx, wallet.ID, decimal.NewFromInt(100), "ref-1")
	require.NoError(t, err)

	assert.True(t, preview.Commission.Equal(transfer.Commission))
	assert.True(t, preview.GasCost.Equal(transfer.GasCost))
	assert.True(t, preview.MasterWalletReceives.Equal(transfer.Amount))
	assert.True(t, preview.MasterWalletReceives.Equal(preview.OrderAmount))
	// The total is the balance requirement, not what moves.
	assert.True(t, preview.TotalAmount.Equal(decimal.RequireFromString("102.5")), preview.TotalAmount.String())
	assert.NotEmpty(t, preview.Breakdown)
}

func TestProcessPendingSettlesFIFO(t *testing.T) {
	f := newTransferFixture(t)
	walletA := f.addWallet(t, "TWalletA", "500")
	walletB := f.addWallet(t, "TWalletB", "500")
	ctx := context.Background()

	first, err := f.svc.Create(ctx, walletA.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, walletB.ID, decimal.NewFromInt(50), "")
	require.NoError(t, err)

	settled, err := f.svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	// Oldest drained first.
	require.Len(t, f.gateway.sentToken, 2)
	assert.Equal(t, "TWalletA", f.gateway.sentToken[0].From)
	assert.Equal(t, "TWalletB", f.gateway.sentToken[1].From)

	// Gas was sponsored for each sweep.
	assert.Len(t, f.gateway.sentTrx, 2)

	done, err := f.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.NotEmpty(t, done.TxHash)
	assert.NotNil(t, done.CompletedAt)

	done, err = f.svc.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)

	// Second drain pass finds nothing.
	settled, err = f.svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

func TestProcessPendingIsolatesFailures(t *testing.T) {
	f := newTransferFixture(t)
	walletA := f.addWallet(t, "TWalletA", "500")
	walletB := f.addWallet(t, "TWalletB", "500")
	ctx := context.Background()

	failing, err := f.svc.Create(ctx, walletA.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	healthy, err := f.svc.Create(ctx, walletB.ID, decimal.NewFromInt(50), "")
	require.NoError(t, err)

	f.gateway.sendTokenErr = func(from string) error {
		if from == "TWalletA" {
			return errors.New("broadcast rejected")
		}
		return nil
	}

	settled, err := f.svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	got, err := f.svc.GetByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "broadcast rejected")

	got, err = f.svc.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	// Lifecycle events: two creations, one failure, one completion.
	statuses := f.notifier.outgoingStatuses()
	assert.Contains(t, statuses, domain.StatusFailed)
	assert.Contains(t, statuses, domain.StatusCompleted)
}

func TestTransferLookups(t *testing.T) {
	f := newTransferFixture(t)
	wallet := f.addWallet(t, "TWalletA", "500")
	ctx := context.Background()

	created, err := f.svc.Create(ctx, wallet.ID, decimal.NewFromInt(100), "ref-42")
	require.NoError(t, err)

	byRef, err := f.svc.GetByReference(ctx, "ref-42")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byRef.ID)

	_, err = f.svc.ProcessPending(ctx)
	require.NoError(t, err)

	done, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	byHash, err := f.svc.GetByTxHash(ctx, done.TxHash)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byHash.ID)

	list, err := f.svc.ListForWallet(ctx, wallet.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	var nferr *domain.TransferNotFoundError
	_, err = f.svc.GetByReference(ctx, "missing")
	assert.ErrorAs(t, err, &nferr)
}

func TestCleanupOldRecordsKeepsRecentAndPending(t *testing.T) {
	f := newTransferFixture(t)
	wallet := f.addWallet(t, "TWalletA", "500")
	ctx := context.Background()

	old, err := f.svc.Create(ctx, wallet.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	pending, err := f.svc.Create(ctx, wallet.ID, decimal.NewFromInt(50), "")
	require.NoError(t, err)

	// Settle the first, backdate both, then clean past the retention window.
	require.NoError(t, f.transfers.MarkCompleted(ctx, old.ID, "hash-old"))

	f.transfers.mu.Lock()
	for _, tr := range f.transfers.transfers {
		tr.CreatedAt = time.Now().Add(-48 * time.Hour)
	}
	f.transfers.mu.Unlock()

	deleted, err := f.svc.CleanupOldRecords(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// The pending transfer survives regardless of age.
	_, err = f.svc.GetByID(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestSweepMovesOrderAmountOnly(t *testing.T) {
	f := newTransferFixture(t)
	wallet := f.addWallet(t, "TWalletA", "500")
	ctx := context.Background()

	created, err := f.svc.Create(ctx, wallet.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	_, err = f.svc.ProcessPending(ctx)
	require.NoError(t, err)

	// 100 USDT at 6 decimals; the quoted gas 1.5 and commission 1 stay in
	// the wallet.
	require.Len(t, f.gateway.sentToken, 1)
	expected := new(big.Int).SetInt64(100_000_000)
	assert.Equal(t, expected.String(), f.gateway.sentToken[0].Amount)

	stored, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(stored.OrderAmount))
}
