package airdrop

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func addrs(n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i][18] = byte(i >> 8)
		out[i][19] = byte(i + 1)
	}
	return out
}

func TestSplitRecipients(t *testing.T) {
	in := addrs(5)
	got, err := SplitRecipients(in, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]common.Address{in[0:2], in[2:4], in[4:5]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRecipientsExactFit(t *testing.T) {
	got, err := SplitRecipients(addrs(100), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 50 || len(got[1]) != 50 {
		t.Fatalf("expected two batches of 50, got %d", len(got))
	}
}

func TestSplitRecipientsEmpty(t *testing.T) {
	got, err := SplitRecipients(nil, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no batches, got %d", len(got))
	}
}

func TestSplitRecipientsInvalid(t *testing.T) {
	if _, err := SplitRecipients(addrs(1), 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestSplitRecipientsBatchesDoNotAlias(t *testing.T) {
	in := addrs(4)
	got, err := SplitRecipients(in, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got[0] = append(got[0], common.Address{})
	if in[2] == (common.Address{}) {
		t.Fatalf("appending to a batch overwrote the next one")
	}
}

func TestParseRecipients(t *testing.T) {
	got, err := ParseRecipients([]string{
		" 0x00000000000000000000000000000000000000a1 ",
		"",
		"0x00000000000000000000000000000000000000A1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := common.HexToAddress("0xa1")
	if len(got) != 2 || got[0] != want || got[1] != want {
		t.Fatalf("unexpected recipients: %v", got)
	}

	if _, err := ParseRecipients([]string{"not-an-address"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestReadRecipients(t *testing.T) {
	input := strings.Join([]string{
		"# snapshot 2024-05-01",
		"0x00000000000000000000000000000000000000b1,1500",
		"",
		"0x00000000000000000000000000000000000000b2",
	}, "\n")
	got, err := ReadRecipients(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []common.Address{common.HexToAddress("0xb1"), common.HexToAddress("0xb2")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("recipients mismatch: %v != %v", got, want)
	}

	if _, err := ReadRecipients(strings.NewReader("0x1234\n")); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line-numbered error, got %v", err)
	}
}
