package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestKeccak256EmptyString(t *testing.T) {
	got := hex.EncodeToString(Keccak256([]byte{}))
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got != want {
		t.Errorf("Keccak256(empty) = %s, want %s", got, want)
	}
}

func TestKeccak256Hello(t *testing.T) {
	got := hex.EncodeToString(Keccak256([]byte("hello")))
	want := "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
	if got != want {
		t.Errorf("Keccak256(hello) = %s, want %s", got, want)
	}
}

func TestKeccak256MultipleInputs(t *testing.T) {
	combined := Keccak256([]byte("helloworld"))
	separate := Keccak256([]byte("hello"), []byte("world"))
	if !bytes.Equal(combined, separate) {
		t.Errorf("Keccak256 multi-input mismatch: %x != %x", combined, separate)
	}
}

func TestKeccak256Hash(t *testing.T) {
	h := Keccak256Hash([]byte{})
	want := common.HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if h != want {
		t.Errorf("Keccak256Hash(empty) = %s, want %s", h, want)
	}
}

func TestKeccak256MatchesGeth(t *testing.T) {
	for n := 0; n < 300; n += 17 {
		data := bytes.Repeat([]byte{byte(n)}, n)
		if got, want := Keccak256Hash(data), gethcrypto.Keccak256Hash(data); got != want {
			t.Errorf("len %d: got %s, want %s", n, got, want)
		}
	}
}

func TestNewKeccakState(t *testing.T) {
	st := NewKeccakState()
	st.Write([]byte("hello"))
	if got := st.Sum(nil); !bytes.Equal(got, Keccak256([]byte("hello"))) {
		t.Errorf("keccak state = %x, want %x", got, Keccak256([]byte("hello")))
	}
}
