package proofs

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestVerifyCache(t *testing.T) {
	c := NewVerifyCache(2, 0)
	if c.HitRate() != 0 {
		t.Errorf("HitRate before lookups = %v, want 0", c.HitRate())
	}
	a, b, d := common.HexToHash("0xa"), common.HexToHash("0xb"), common.HexToHash("0xd")
	c.Add(a)
	c.Add(b)
	if !c.Contains(a) {
		t.Fatal("a missing")
	}
	// a was used more recently than b, so b is evicted.
	c.Add(d)
	if c.Contains(b) {
		t.Error("b survived eviction")
	}
	if !c.Contains(d) {
		t.Error("d missing")
	}
	c.Remove(d)
	if c.Contains(d) {
		t.Error("d survived Remove")
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 2 || st.Entries != 1 {
		t.Errorf("Stats = %+v", st)
	}
	if got := c.HitRate(); got != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", got)
	}
}

func TestVerifyCache_Expiry(t *testing.T) {
	c := NewVerifyCache(0, 20*time.Millisecond)
	h := common.HexToHash("0x1")
	c.Add(h)
	time.Sleep(60 * time.Millisecond)
	if c.Contains(h) {
		t.Error("entry survived its ttl")
	}
}
