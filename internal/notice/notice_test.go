package notice

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestVictoryRoundTrip(t *testing.T) {
	in := Victory{
		ID:       42,
		Winner:   common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
		Loser:    common.HexToAddress("0x0000000000000000000000000000000000000b0b"),
		Message:  "0x…a11CE defeats 0x…0b0B by checkmate",
		Notation: "1.e4 e5 2.Qh5 Nc6 3.Bc4 Nf6 4.Qxf7# ",
	}

	payload, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeVictory(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestVictoryPayloadLayout(t *testing.T) {
	v := Victory{ID: 1}
	payload, err := v.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if !bytes.HasPrefix(payload, VictoryTopic.Bytes()) {
		t.Fatal("payload must start with the event topic hash")
	}

	// The first data word is the int32 id, left-padded to 32 bytes.
	word := payload[common.HashLength : common.HashLength+32]
	if got := new(big.Int).SetBytes(word).Int64(); got != 1 {
		t.Fatalf("first word = %d, want 1", got)
	}
}

func TestDecodeRejectsForeignPayload(t *testing.T) {
	if _, err := DecodeVictory([]byte("short")); err == nil {
		t.Fatal("expected error for short payload")
	}
	bogus := make([]byte, 32+5*32)
	if _, err := DecodeVictory(bogus); err == nil {
		t.Fatal("expected error for wrong topic hash")
	}
}
