package game

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	// Piece glyphs indexed by [sameColorAsSquare][pieceType]. Picking the
	// filled glyph when the piece matches its square color keeps both piece
	// colors legible on both square colors.
	filledGlyphs  = map[nchess.PieceType]rune{nchess.Pawn: '♟', nchess.Knight: '♞', nchess.Bishop: '♝', nchess.Rook: '♜', nchess.Queen: '♛', nchess.King: '♚'}
	outlineGlyphs = map[nchess.PieceType]rune{nchess.Pawn: '♙', nchess.Knight: '♘', nchess.Bishop: '♗', nchess.Rook: '♖', nchess.Queen: '♕', nchess.King: '♔'}
)

// ANSIBoard renders the current position for a terminal, from the given
// player's perspective.
func (g *Game) ANSIBoard(perspective Color) string {
	board := g.inner.Position().Board()

	ranks := make([]string, 0, 8)
	for rank := 0; rank < 8; rank++ {
		var row strings.Builder
		files := fileOrder(perspective)
		for _, file := range files {
			sq := nchess.Square(rank*8 + file)
			light := (rank+file)%2 == 1
			row.WriteString(ansiCell(board.Piece(sq), light))
		}
		label := string(rune('1' + rank))
		ranks = append(ranks, label+" "+row.String())
	}

	var b strings.Builder
	if perspective == White {
		for i := 7; i >= 0; i-- {
			b.WriteString(ranks[i])
			b.WriteByte('\n')
		}
		b.WriteString("   a  b  c  d  e  f  g  h ")
	} else {
		for i := 0; i < 8; i++ {
			b.WriteString(ranks[i])
			b.WriteByte('\n')
		}
		b.WriteString("   h  g  f  e  d  c  b  a ")
	}
	return b.String()
}

func fileOrder(perspective Color) []int {
	if perspective == White {
		return []int{0, 1, 2, 3, 4, 5, 6, 7}
	}
	return []int{7, 6, 5, 4, 3, 2, 1, 0}
}

func ansiCell(piece nchess.Piece, light bool) string {
	bg, fg := "40", "37"
	if light {
		bg, fg = "47", "30"
	}
	if piece == nchess.NoPiece {
		return "\x1b[" + bg + "m   \x1b[0m"
	}

	squareIsWhite := light
	pieceIsWhite := piece.Color() == White
	glyphs := outlineGlyphs
	if pieceIsWhite != squareIsWhite {
		glyphs = filledGlyphs
	}
	return "\x1b[" + bg + ";" + fg + "m " + string(glyphs[piece.Type()]) + " \x1b[0m"
}
