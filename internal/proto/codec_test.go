package proto

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCodec_RoundTripAllVariants(t *testing.T) {
	long := strings.Repeat("n", NameSize)
	cmds := []Command{
		Ping{Seq: 0},
		Ping{Seq: 0xdeadbeef},
		Ack{Seq: 7},
		Knock{Version: 1, Name: "Bob"},
		Knock{Version: 0xffff, Name: ""},
		Knock{Version: 2, Name: long},
		Welcome{Slot: 1},
		Welcome{Slot: 4},
		Players{Slots: [PlayerCount]PlayerEntry{{true, "Alice"}, {false, ""}, {true, long}, {true, ""}}},
		Error{Code: ErrInvalidCommand},
		Error{Code: ErrTooManyPlayers},
		Error{Code: ErrInvalidVersion},
		Bye{},
		Query{},
		GameStatus{NumPlayers: 3, Hole: 12, Course: "Lagoon"},
	}
	for _, c := range cmds {
		b, err := Encode(c)
		if err != nil {
			t.Fatalf("encode %v: %v", c, err)
		}
		size, _ := SizeOf(c.Tag())
		if len(b) != size {
			t.Fatalf("%v: len=%d want %d", c.Tag(), len(b), size)
		}
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %v: %v", c.Tag(), err)
		}
		if !reflect.DeepEqual(got, c) {
			t.Fatalf("round trip %v: got %#v", c.Tag(), got)
		}
	}
}

func TestCodec_Sizes(t *testing.T) {
	want := map[Tag]int{
		TagPing: 5, TagAck: 5, TagKnock: 259, TagWelcome: 2, TagPlayers: 1029,
		TagError: 3, TagBye: 1, TagQuery: 1, TagGameStatus: 259,
	}
	for tag, n := range want {
		if got, ok := SizeOf(tag); !ok || got != n {
			t.Fatalf("SizeOf(%v)=%d,%v want %d", tag, got, ok, n)
		}
		if n > MaxCommandSize {
			t.Fatalf("%v exceeds MaxCommandSize", tag)
		}
	}
	if MaxCommandSize != 1029 {
		t.Fatalf("MaxCommandSize=%d", MaxCommandSize)
	}
}

func TestCodec_BigEndianLayout(t *testing.T) {
	b, _ := Encode(Ping{Seq: 0x01020304})
	if !bytes.Equal(b, []byte{0, 1, 2, 3, 4}) {
		t.Fatalf("ping bytes=% x", b)
	}
	b, _ = Encode(Knock{Version: 0x0102, Name: "Al"})
	if b[0] != byte(TagKnock) || b[1] != 0x01 || b[2] != 0x02 || b[3] != 'A' || b[4] != 'l' {
		t.Fatalf("knock head=% x", b[:5])
	}
	if !bytes.Equal(b[5:], make([]byte, NameSize-2)) {
		t.Fatalf("name not zero padded")
	}
	b, _ = Encode(Error{Code: ErrInvalidVersion})
	if !bytes.Equal(b, []byte{5, 0, 2}) {
		t.Fatalf("error bytes=% x", b)
	}
}

func TestCodec_NameTruncation(t *testing.T) {
	over := strings.Repeat("x", NameSize) + "overflow"
	b, err := Encode(Knock{Version: 1, Name: over})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != sizeKnock {
		t.Fatalf("len=%d", len(b))
	}
	got, _ := Decode(b)
	if name := got.(Knock).Name; name != over[:NameSize] {
		t.Fatalf("name len=%d", len(name))
	}

	// Embedded NUL terminates the name.
	b, _ = Encode(Knock{Version: 1, Name: "ab\x00cd"})
	got, _ = Decode(b)
	if name := got.(Knock).Name; name != "ab" {
		t.Fatalf("name=%q", name)
	}
	if NormalizeName("ab\x00cd") != "ab" {
		t.Fatalf("NormalizeName mismatch")
	}
}

func TestCodec_NameTruncationKeepsRunesWhole(t *testing.T) {
	// 255 ASCII bytes then a 3-byte rune straddling the limit.
	long := strings.Repeat("x", NameSize-1) + "€" + "tail"
	got := NormalizeName(long)
	if got != strings.Repeat("x", NameSize-1) {
		t.Fatalf("len=%d valid=%v", len(got), utf8.ValidString(got))
	}

	b, err := Encode(Knock{Version: 1, Name: long})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, _ := Decode(b)
	if name := dec.(Knock).Name; !utf8.ValidString(name) || name != got {
		t.Fatalf("decoded name len=%d valid=%v", len(name), utf8.ValidString(name))
	}

	// A name that fits exactly is not trimmed.
	exact := strings.Repeat("x", NameSize-2) + "é"
	if NormalizeName(exact) != exact {
		t.Fatalf("exact-fit name was trimmed")
	}
}

func TestCodec_DecodeRejectsMalformed(t *testing.T) {
	ping, _ := Encode(Ping{Seq: 1})
	cases := map[string][]byte{
		"empty":       nil,
		"unknown tag": {0x7f, 0, 0, 0, 0},
		"short":       ping[:4],
		"long":        append(append([]byte{}, ping...), 0),
		"knock short": make([]byte, 10),
	}
	cases["knock short"][0] = byte(TagKnock)
	for name, b := range cases {
		if _, err := Decode(b); !errors.Is(err, ErrMalformedCommand) {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
}

type bogus struct{}

func (bogus) Tag() Tag { return TagPing }

type unknownTag struct{}

func (unknownTag) Tag() Tag { return 200 }

func TestCodec_EncodeUnknown(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("nil err=%v", err)
	}
	if _, err := Encode(bogus{}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("bogus err=%v", err)
	}
	if _, err := Encode(unknownTag{}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("unknown tag err=%v", err)
	}
}

func TestToHex(t *testing.T) {
	if got := ToHex([]byte{0x0a, 0xff, 0x00}, 0); got != "0A FF 00" {
		t.Fatalf("got=%q", got)
	}
	if got := ToHex([]byte{1, 2, 3}, 2); got != "01 02 .." {
		t.Fatalf("got=%q", got)
	}
}
