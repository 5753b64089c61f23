package contracts

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/logger"

	"attendance-backend/attendance"
)

// ERC20 ABI - only the functions we need
const erc20ABI = `[
	{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// ChainClient is the subset of *ethclient.Client the vault uses.
type ChainClient interface {
	ethereum.ContractCaller
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	bind.DeployBackend
}

// VaultPayer pays rewards in an ERC-20 token from a treasury wallet.
type VaultPayer struct {
	client   ChainClient
	token    common.Address
	key      *ecdsa.PrivateKey
	treasury common.Address
	chainID  *big.Int
	abi      abi.ABI
}

// NewVaultPayer creates a VaultPayer. privateKeyHex is the treasury key without 0x prefix.
func NewVaultPayer(client ChainClient, tokenAddress, privateKeyHex string, chainID *big.Int) (*VaultPayer, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token address: %s", tokenAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse payout key: %w", err)
	}
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	return &VaultPayer{
		client:   client,
		token:    common.HexToAddress(tokenAddress),
		key:      key,
		treasury: crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		abi:      parsedABI,
	}, nil
}

// Treasury returns the address rewards are paid from.
func (v *VaultPayer) Treasury() common.Address {
	return v.treasury
}

// Pay signs transfer(recipient, amount), hands its hash to record, sends it and waits
// for it to be mined. Nothing is sent if record fails.
func (v *VaultPayer) Pay(ctx context.Context, p attendance.Payment, record func(ref string) error) (string, error) {
	if !common.IsHexAddress(string(p.Recipient)) {
		return "", fmt.Errorf("invalid recipient address: %s", p.Recipient)
	}
	if p.Amount.Sign() < 0 {
		return "", fmt.Errorf("cannot transfer negative amount %s", p.Amount)
	}

	callData, err := v.abi.Pack("transfer", common.HexToAddress(string(p.Recipient)), p.Amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer call data: %w", err)
	}

	nonce, err := v.client.PendingNonceAt(ctx, v.treasury)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := v.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}
	gas, err := v.client.EstimateGas(ctx, ethereum.CallMsg{
		From: v.treasury,
		To:   &v.token,
		Data: callData,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &v.token,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     callData,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(v.chainID), v.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transfer: %w", err)
	}
	ref := signed.Hash().Hex()
	if err := record(ref); err != nil {
		return "", fmt.Errorf("failed to record transfer %s: %w", ref, err)
	}
	if err := v.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transfer: %w", err)
	}
	logger.Infof("Sent reward transfer %s: %s to %s (payment %s)", ref, p.Amount, p.Recipient, p.ID)

	receipt, err := bind.WaitMined(ctx, v.client, signed)
	if err != nil {
		return "", fmt.Errorf("failed waiting for transfer %s: %w", ref, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("transfer %s reverted", ref)
	}
	return ref, nil
}

// Settled reports whether an earlier transfer was mined successfully. A reverted
// transfer, or one the node has never seen, can be sent again. A transfer still in
// the pool is an error so the caller waits for it.
func (v *VaultPayer) Settled(ctx context.Context, ref string) (bool, error) {
	hash := common.HexToHash(ref)
	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err == nil {
		return receipt.Status == types.ReceiptStatusSuccessful, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return false, fmt.Errorf("failed to get receipt for %s: %w", ref, err)
	}

	_, pending, err := v.client.TransactionByHash(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up transfer %s: %w", ref, err)
	case pending:
		return false, fmt.Errorf("transfer %s is still pending", ref)
	}
	return false, fmt.Errorf("transfer %s has no receipt", ref)
}

// Balance calls balanceOf(treasury) on the reward token.
func (v *VaultPayer) Balance(ctx context.Context) (*big.Int, error) {
	callData, err := v.abi.Pack("balanceOf", v.treasury)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}

	result, err := v.client.CallContract(ctx, ethereum.CallMsg{
		To:   &v.token,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty result from contract call")
	}

	var balance *big.Int
	err = v.abi.UnpackIntoInterface(&balance, "balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}
	return balance, nil
}
