// chesspresso is the command-line client: it reads the local mirror kept by
// chesspressod, builds moves with their intended-state hashes, and submits
// them to the base layer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/subcommands"

	"github.com/chesspresso/chesspresso/internal/chain"
	"github.com/chesspresso/chesspresso/internal/config"
	"github.com/chesspresso/chesspresso/internal/indexer"
	"github.com/chesspresso/chesspresso/internal/obslog"
	"github.com/chesspresso/chesspresso/internal/store"
)

// env bundles the configuration shared by every command.
type env struct {
	cfg *config.AppConfig
}

// address resolves the player's account: derived from the private key when
// one is configured, otherwise taken from CHESSPRESSO_ADDRESS.
func (e *env) address() (common.Address, error) {
	if e.cfg.PrivateKey != "" {
		key, err := chain.ParseKey(e.cfg.PrivateKey)
		if err != nil {
			return common.Address{}, err
		}
		return chain.KeyAddress(key), nil
	}
	if common.IsHexAddress(e.cfg.Address) {
		return common.HexToAddress(e.cfg.Address), nil
	}
	return common.Address{}, errors.New("set CHESSPRESSO_PRIVATE_KEY or CHESSPRESSO_ADDRESS")
}

// openStore opens the local mirror for the player's account.
func (e *env) openStore(ctx context.Context) (*store.Store, common.Address, error) {
	address, err := e.address()
	if err != nil {
		return nil, common.Address{}, err
	}
	path, err := e.cfg.LocalDBPath(address.Hex())
	if err != nil {
		return nil, common.Address{}, err
	}
	s, err := store.Open(ctx, path)
	if err != nil {
		return nil, common.Address{}, err
	}
	return s, address, nil
}

// submitter prepares base-layer submission; it requires a private key.
func (e *env) submitter(ctx context.Context) (*chain.Submitter, error) {
	if e.cfg.PrivateKey == "" {
		return nil, errors.New("CHESSPRESSO_PRIVATE_KEY is required to submit moves")
	}
	key, err := chain.ParseKey(e.cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(e.cfg.InputBoxAddress) || !common.IsHexAddress(e.cfg.DappAddress) {
		return nil, errors.New("invalid contract address configuration")
	}
	return chain.Dial(ctx, e.cfg.RPCURL, key,
		common.HexToAddress(e.cfg.InputBoxAddress),
		common.HexToAddress(e.cfg.DappAddress))
}

func (e *env) indexer() *indexer.InspectIndexer {
	return indexer.NewInspectIndexer(e.cfg.NodeURL)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "init logging:", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	e := &env{cfg: cfg}

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&addressCmd{}, "")
	subcommands.Register(&gamesCmd{}, "")
	subcommands.Register(&gameCmd{}, "")
	subcommands.Register(&challengeCmd{}, "")
	subcommands.Register(&playCmd{}, "")
	subcommands.Register(&resignCmd{}, "")
	subcommands.Register(&statsCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background(), e)))
}
