// Package chain submits Advance messages to the base layer.
//
// Inputs reach the rollup through the InputBox contract: the JSON-encoded
// Advance is wrapped in an addInput call addressed to the dApp and sent as a
// signed transaction.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/message"
	"github.com/chesspresso/chesspresso/internal/obslog"
)

const inputBoxABI = `[{"type":"function","name":"addInput","stateMutability":"nonpayable","inputs":[{"name":"dapp","type":"address"},{"name":"payload","type":"bytes"}],"outputs":[{"name":"","type":"bytes32"}]}]`

// ParseKey decodes a hex-encoded secp256k1 private key, with or without the
// 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// KeyAddress returns the account address controlled by key.
func KeyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Submitter signs and submits inputs for one account.
type Submitter struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	inputBox common.Address
	dapp     common.Address
	abi      abi.ABI
}

// Dial connects to the base layer at rpcURL and prepares a submitter for the
// given InputBox and dApp addresses.
func Dial(ctx context.Context, rpcURL string, key *ecdsa.PrivateKey, inputBox, dapp common.Address) (*Submitter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(inputBoxABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse input box abi: %w", err)
	}

	return &Submitter{
		client:   client,
		key:      key,
		from:     KeyAddress(key),
		chainID:  chainID,
		inputBox: inputBox,
		dapp:     dapp,
		abi:      parsed,
	}, nil
}

// From returns the submitting account.
func (s *Submitter) From() common.Address { return s.from }

func (s *Submitter) Close() { s.client.Close() }

// SendAdvance submits an Advance as an InputBox input and waits for the
// transaction to be mined.
func (s *Submitter) SendAdvance(ctx context.Context, a message.Advance) error {
	payload, err := message.MarshalAdvance(a)
	if err != nil {
		return err
	}
	data, err := s.abi.Pack("addInput", s.dapp, payload)
	if err != nil {
		return fmt.Errorf("pack addInput: %w", err)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}
	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from,
		To:   &s.inputBox,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.inputBox,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, s.client, signed)
	if err != nil {
		return fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("input tx %s reverted", signed.Hash().Hex())
	}

	obslog.L().Info("input_submitted",
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return nil
}
