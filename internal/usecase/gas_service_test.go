package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tron-gateway/internal/config"
)

func testGasConfig() config.GasConfig {
	return config.GasConfig{
		Enabled:      true,
		MinTrxAmount: decimal.NewFromInt(15),
	}
}

func TestEnsureGasSendsFixedAmount(t *testing.T) {
	gateway := newFakeGateway()
	svc := NewGasService(gateway, testGasConfig(), masterAddr, "key", zap.NewNop())

	outcome := svc.EnsureGas(context.Background(), "TWallet")

	assert.Equal(t, SponsorshipSent, outcome.Status)
	assert.NotEmpty(t, outcome.TxHash)
	require.Len(t, gateway.sentTrx, 1)
	assert.Equal(t, masterAddr, gateway.sentTrx[0].From)
	assert.Equal(t, "TWallet", gateway.sentTrx[0].To)
	assert.Equal(t, "15000000", gateway.sentTrx[0].Amount, "15 TRX in sun")
}

func TestEnsureGasDisabled(t *testing.T) {
	cfg := testGasConfig()
	cfg.Enabled = false
	gateway := newFakeGateway()
	svc := NewGasService(gateway, cfg, masterAddr, "key", zap.NewNop())

	outcome := svc.EnsureGas(context.Background(), "TWallet")

	assert.Equal(t, SponsorshipSkipped, outcome.Status)
	assert.Empty(t, gateway.sentTrx)
}

func TestEnsureGasSwallowsSendFailure(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sendTrxErr = errors.New("broadcast rejected")
	svc := NewGasService(gateway, testGasConfig(), masterAddr, "key", zap.NewNop())

	outcome := svc.EnsureGas(context.Background(), "TWallet")

	assert.Equal(t, SponsorshipFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "broadcast rejected")
}
