package usecase

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"tron-gateway/internal/domain"
)

// fakeGateway is an in-memory NetworkGateway. Balances and history are
// seeded per address; send hooks let tests inject failures.
type fakeGateway struct {
	mu sync.Mutex

	trxBalances   map[string]*big.Int
	tokenBalances map[string]*big.Int
	transfers     map[string][]domain.TokenTransfer
	confirmations map[string]domain.TxConfirmation

	chainParams    domain.ChainParameters
	chainParamsErr error
	energy         int64
	energyErr      error

	sendTrxErr   error
	sendTokenErr func(from string) error

	sentTrx   []fakeSend
	sentToken []fakeSend
	sendSeq   int
}

type fakeSend struct {
	From   string
	To     string
	Amount string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		trxBalances:   make(map[string]*big.Int),
		tokenBalances: make(map[string]*big.Int),
		transfers:     make(map[string][]domain.TokenTransfer),
		confirmations: make(map[string]domain.TxConfirmation),
		chainParams:   domain.ChainParameters{EnergyPriceSun: 420, BandwidthPriceSun: 1000, FetchedAt: time.Now()},
		energy:        31895,
	}
}

func (g *fakeGateway) TrxBalance(ctx context.Context, address string) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.trxBalances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (g *fakeGateway) TokenBalance(ctx context.Context, address, contractAddress string) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.tokenBalances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (g *fakeGateway) EstimateTransferEnergy(ctx context.Context, from, to, contractAddress string, amountWei *big.Int) (int64, error) {
	if g.energyErr != nil {
		return 0, g.energyErr
	}
	return g.energy, nil
}

func (g *fakeGateway) ChainParameters(ctx context.Context) (domain.ChainParameters, error) {
	if g.chainParamsErr != nil {
		return domain.ChainParameters{}, g.chainParamsErr
	}
	params := g.chainParams
	params.FetchedAt = time.Now()
	return params, nil
}

func (g *fakeGateway) SendTrx(ctx context.Context, from, to string, amountSun int64, privateKeyHex string) (string, error) {
	if g.sendTrxErr != nil {
		return "", g.sendTrxErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendSeq++
	g.sentTrx = append(g.sentTrx, fakeSend{From: from, To: to, Amount: fmt.Sprintf("%d", amountSun)})
	return fmt.Sprintf("trx-hash-%d", g.sendSeq), nil
}

func (g *fakeGateway) SendToken(ctx context.Context, from, to, contractAddress string, amountWei *big.Int, privateKeyHex string) (string, error) {
	if g.sendTokenErr != nil {
		if err := g.sendTokenErr(from); err != nil {
			return "", err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendSeq++
	g.sentToken = append(g.sentToken, fakeSend{From: from, To: to, Amount: amountWei.String()})
	return fmt.Sprintf("token-hash-%d", g.sendSeq), nil
}

func (g *fakeGateway) TokenTransfers(ctx context.Context, address, contractAddress string, limit int) ([]domain.TokenTransfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.TokenTransfer(nil), g.transfers[address]...), nil
}

func (g *fakeGateway) Confirmations(ctx context.Context, txHash string) (domain.TxConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmations[txHash], nil
}

type fakeWalletStore struct {
	mu      sync.Mutex
	nextID  int64
	wallets map[int64]*domain.Wallet
	listErr error
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: make(map[int64]*domain.Wallet)}
}

func (s *fakeWalletStore) Create(ctx context.Context, wallet *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	wallet.ID = s.nextID
	wallet.CreatedAt = time.Now()
	copied := *wallet
	s.wallets[wallet.ID] = &copied
	return nil
}

func (s *fakeWalletStore) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, &domain.WalletNotFoundError{ID: id}
	}
	copied := *w
	return &copied, nil
}

func (s *fakeWalletStore) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.Address == address {
			copied := *w
			return &copied, nil
		}
	}
	return nil, &domain.WalletNotFoundError{Address: address}
}

func (s *fakeWalletStore) List(ctx context.Context) ([]*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*domain.Wallet, 0, len(s.wallets))
	for id := int64(1); id <= s.nextID; id++ {
		if w, ok := s.wallets[id]; ok {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeWalletStore) MarkActivated(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return &domain.WalletNotFoundError{ID: id}
	}
	w.Activated = true
	return nil
}

type fakeTransferStore struct {
	mu        sync.Mutex
	nextID    int64
	transfers map[int64]*domain.OutgoingTransfer
	order     []int64
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{transfers: make(map[int64]*domain.OutgoingTransfer)}
}

func (s *fakeTransferStore) Create(ctx context.Context, t *domain.OutgoingTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = time.Now()
	copied := *t
	s.transfers[t.ID] = &copied
	s.order = append(s.order, t.ID)
	return nil
}

func (s *fakeTransferStore) GetByID(ctx context.Context, id int64) (*domain.OutgoingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, &domain.TransferNotFoundError{Key: fmt.Sprintf("id %d", id)}
	}
	copied := *t
	return &copied, nil
}

func (s *fakeTransferStore) GetByReference(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transfers {
		if t.ReferenceID == referenceID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, &domain.TransferNotFoundError{Key: fmt.Sprintf("reference %s", referenceID)}
}

func (s *fakeTransferStore) GetByTxHash(ctx context.Context, txHash string) (*domain.OutgoingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transfers {
		if t.TxHash == txHash {
			copied := *t
			return &copied, nil
		}
	}
	return nil, &domain.TransferNotFoundError{Key: fmt.Sprintf("tx %s", txHash)}
}

func (s *fakeTransferStore) ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.OutgoingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OutgoingTransfer
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.transfers[s.order[i]]
		if t != nil && t.FromWalletID == walletID {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeTransferStore) ListPending(ctx context.Context, limit int) ([]*domain.OutgoingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OutgoingTransfer
	for _, id := range s.order {
		if len(out) == limit {
			break
		}
		t := s.transfers[id]
		if t != nil && t.Status == domain.StatusPending {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeTransferStore) MarkCompleted(ctx context.Context, id int64, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok || t.Status != domain.StatusPending {
		return fmt.Errorf("transfer %d is not pending", id)
	}
	now := time.Now()
	t.Status = domain.StatusCompleted
	t.TxHash = txHash
	t.CompletedAt = &now
	return nil
}

func (s *fakeTransferStore) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok || t.Status != domain.StatusPending {
		return fmt.Errorf("transfer %d is not pending", id)
	}
	now := time.Now()
	t.Status = domain.StatusFailed
	t.ErrorMessage = errorMessage
	t.CompletedAt = &now
	return nil
}

func (s *fakeTransferStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	var kept []int64
	for _, id := range s.order {
		t := s.transfers[id]
		if t != nil && t.Status.IsTerminal() && t.CreatedAt.Before(cutoff) {
			delete(s.transfers, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

type incomingKey struct {
	walletID int64
	txHash   string
}

type fakeIncomingStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[incomingKey]*domain.IncomingTransaction
}

func newFakeIncomingStore() *fakeIncomingStore {
	return &fakeIncomingStore{rows: make(map[incomingKey]*domain.IncomingTransaction)}
}

func (s *fakeIncomingStore) Insert(ctx context.Context, tx *domain.IncomingTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := incomingKey{tx.WalletID, tx.TxHash}
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	s.nextID++
	tx.ID = s.nextID
	copied := *tx
	s.rows[key] = &copied
	return true, nil
}

func (s *fakeIncomingStore) KnownStatuses(ctx context.Context, walletID int64) (map[string]domain.TransferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]domain.TransferStatus)
	for key, row := range s.rows {
		if key.walletID == walletID {
			known[key.txHash] = row.Status
		}
	}
	return known, nil
}

func (s *fakeIncomingStore) UpdateStatus(ctx context.Context, walletID int64, txHash string, status domain.TransferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[incomingKey{walletID, txHash}]
	if !ok || row.Status.IsTerminal() {
		return nil
	}
	row.Status = status
	if status == domain.StatusCompleted {
		now := time.Now()
		row.ConfirmedAt = &now
	}
	return nil
}

func (s *fakeIncomingStore) ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.IncomingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.IncomingTransaction
	for key, row := range s.rows {
		if key.walletID == walletID && len(out) < limit {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeIncomingStore) Stats(ctx context.Context) (*domain.MonitoringStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &domain.MonitoringStats{}
	for _, row := range s.rows {
		stats.Total++
		switch row.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *fakeIncomingStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, row := range s.rows {
		if row.Status.IsTerminal() && row.DetectedAt.Before(cutoff) {
			delete(s.rows, key)
			deleted++
		}
	}
	return deleted, nil
}

// fakeNotifier records every event it is handed.
type fakeNotifier struct {
	mu             sync.Mutex
	walletsCreated []int64
	activations    []int64
	incoming       []*domain.IncomingTransaction
	outgoing       []*domain.OutgoingTransfer
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{} }

func (n *fakeNotifier) WalletCreated(ctx context.Context, wallet *domain.Wallet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.walletsCreated = append(n.walletsCreated, wallet.ID)
}

func (n *fakeNotifier) WalletActivated(ctx context.Context, wallet *domain.Wallet, txHash string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activations = append(n.activations, wallet.ID)
}

func (n *fakeNotifier) IncomingTransaction(ctx context.Context, tx *domain.IncomingTransaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	copied := *tx
	n.incoming = append(n.incoming, &copied)
}

func (n *fakeNotifier) OutgoingTransfer(ctx context.Context, t *domain.OutgoingTransfer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	copied := *t
	n.outgoing = append(n.outgoing, &copied)
}

func (n *fakeNotifier) outgoingStatuses() []domain.TransferStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.TransferStatus, len(n.outgoing))
	for i, t := range n.outgoing {
		out[i] = t.Status
	}
	return out
}
