package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/subcommands"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
)

type addressCmd struct{}

func (*addressCmd) Name() string             { return "address" }
func (*addressCmd) Synopsis() string         { return "Print the player's account address" }
func (*addressCmd) Usage() string            { return "address\n" }
func (*addressCmd) SetFlags(f *flag.FlagSet) {}

func (*addressCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)
	address, err := e.address()
	if err != nil {
		return fail(err)
	}
	fmt.Println(address.Hex())
	return subcommands.ExitSuccess
}

type gamesCmd struct{}

func (*gamesCmd) Name() string             { return "games" }
func (*gamesCmd) Synopsis() string         { return "List your live games" }
func (*gamesCmd) Usage() string            { return "games\n" }
func (*gamesCmd) SetFlags(f *flag.FlagSet) {}

func (*gamesCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)
	s, address, err := e.openStore(ctx)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	games, err := s.Games(ctx, address, nil)
	if err != nil {
		return fail(err)
	}
	for _, row := range games {
		g, err := s.Game(ctx, row.ID)
		if err != nil {
			return fail(fmt.Errorf("loading game %s: %w", row.ID, err))
		}
		color, ok := g.PlayerColor(address)
		if !ok {
			return fail(fmt.Errorf("not playing in game %s", row.ID))
		}
		whose := "their"
		if g.Turn() == color {
			whose = "your"
		}
		fmt.Printf("%s. as %s vs. %s (move %d, %s move)\n",
			row.ID, strings.ToLower(color.Name()), g.Player(color.Other()).Hex(),
			g.FullMove()+1, whose)
	}
	return subcommands.ExitSuccess
}

type gameCmd struct{}

func (*gameCmd) Name() string             { return "game" }
func (*gameCmd) Synopsis() string         { return "Show the position of a game" }
func (*gameCmd) Usage() string            { return "game <id>\n" }
func (*gameCmd) SetFlags(f *flag.FlagSet) {}

func (*gameCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)
	if f.NArg() != 1 {
		return fail(errors.New("usage: game <id>"))
	}
	id, err := game.ParseGameID(f.Arg(0))
	if err != nil {
		return fail(err)
	}

	s, address, err := e.openStore(ctx)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	g, err := s.Game(ctx, id)
	if err != nil {
		return fail(err)
	}
	color, ok := g.PlayerColor(address)
	if !ok {
		return fail(fmt.Errorf("not playing in game %s", id))
	}
	notation, err := s.GameNotation(ctx, id)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("%s\n\n%s\n\n%s to move\n",
		notation, g.ANSIBoard(color), strings.ToLower(g.Turn().Name()))
	return subcommands.ExitSuccess
}

type challengeCmd struct{}

func (*challengeCmd) Name() string     { return "challenge" }
func (*challengeCmd) Synopsis() string { return "Challenge someone to a game" }
func (*challengeCmd) Usage() string {
	return `challenge <opponent> [first-move]

With a first move you play white and the move is made immediately. Without
one you play black and the opponent moves first to accept.
`
}
func (*challengeCmd) SetFlags(f *flag.FlagSet) {}

func (*challengeCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)
	if f.NArg() < 1 || f.NArg() > 2 {
		return fail(errors.New("usage: challenge <opponent> [first-move]"))
	}
	if !common.IsHexAddress(f.Arg(0)) {
		return fail(fmt.Errorf("invalid opponent address %q", f.Arg(0)))
	}
	challenge := message.Challenge{Opponent: common.HexToAddress(f.Arg(0))}
	if f.NArg() == 2 {
		san := f.Arg(1)
		challenge.FirstMove = &san
	}

	sub, err := e.submitter(ctx)
	if err != nil {
		return fail(err)
	}
	defer sub.Close()

	if err := sub.SendAdvance(ctx, challenge); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type playCmd struct{}

func (*playCmd) Name() string             { return "play" }
func (*playCmd) Synopsis() string         { return "Make a move in a game" }
func (*playCmd) Usage() string            { return "play <id> <san>\n" }
func (*playCmd) SetFlags(f *flag.FlagSet) {}

func (*playCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)
	if f.NArg() != 2 {
		return fail(errors.New("usage: play <id> <san>"))
	}
	id, err := game.ParseGameID(f.Arg(0))
	if err != nil {
		return fail(err)
	}
	san := f.Arg(1)

	s, address, err := e.openStore(ctx)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	g, err := s.Game(ctx, id)
	if err != nil {
		return fail(err)
	}
	// The rollup would reject it anyway; failing here saves a transaction.
	if address != g.Player(g.Turn()) {
		return fail(errors.New("it is not your turn"))
	}

	sub, err := e.submitter(ctx)
	if err != nil {
		return fail(err)
	}
	defer sub.Close()

	if err := sub.SendAdvance(ctx, message.Move{ID: id, Hash: g.Hash(), SAN: san}); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type resignCmd struct{}

func (*resignCmd) Name() string             { return "resign" }
func (*resignCmd) Synopsis() string         { return "Resign a game" }
func (*resignCmd) Usage() string            { return "resign <id>\n" }
func (*resignCmd) SetFlags(f *flag.FlagSet) {}

func (*resignCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)
	if f.NArg() != 1 {
		return fail(errors.New("usage: resign <id>"))
	}
	id, err := game.ParseGameID(f.Arg(0))
	if err != nil {
		return fail(err)
	}

	s, _, err := e.openStore(ctx)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	g, err := s.Game(ctx, id)
	if err != nil {
		return fail(err)
	}

	sub, err := e.submitter(ctx)
	if err != nil {
		return fail(err)
	}
	defer sub.Close()

	if err := sub.SendAdvance(ctx, message.Resign{ID: id, Hash: g.Hash()}); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type statsCmd struct{}

func (*statsCmd) Name() string             { return "stats" }
func (*statsCmd) Synopsis() string         { return "Show a player's rating and record" }
func (*statsCmd) Usage() string            { return "stats [user]\n" }
func (*statsCmd) SetFlags(f *flag.FlagSet) {}

func (*statsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := args[0].(*env)

	var user common.Address
	switch f.NArg() {
	case 0:
		address, err := e.address()
		if err != nil {
			return fail(err)
		}
		user = address
	case 1:
		if !common.IsHexAddress(f.Arg(0)) {
			return fail(fmt.Errorf("invalid address %q", f.Arg(0)))
		}
		user = common.HexToAddress(f.Arg(0))
	default:
		return fail(errors.New("usage: stats [user]"))
	}

	stats, err := e.indexer().UserStats(ctx, user)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("%s\n", user.Hex())
	fmt.Printf("  elo: %.1f\n", stats.Elo)
	fmt.Printf("  as white: %d wins, %d losses, %d draws\n",
		stats.WhiteWins, stats.WhiteLosses, stats.WhiteDraws)
	fmt.Printf("  as black: %d wins, %d losses, %d draws\n",
		stats.BlackWins, stats.BlackLosses, stats.BlackDraws)
	return subcommands.ExitSuccess
}
