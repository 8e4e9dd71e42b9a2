package rollup

import "fmt"

// SlotKind tags a batch slot as carrying a real chunk or padding.
type SlotKind uint8

const (
	SlotReal SlotKind = iota
	SlotPadding
)

func (k SlotKind) String() string {
	switch k {
	case SlotReal:
		return "real"
	case SlotPadding:
		return "padding"
	default:
		return fmt.Sprintf("SlotKind(%d)", uint8(k))
	}
}

// ChunkSlot is one entry of a batch's fixed chunk array.
type ChunkSlot struct {
	Kind  SlotKind
	Chunk ChunkHash
}

// Pad copies the real chunks into a fixed array of MaxChunks slots and fills
// the remainder with padding chunks anchored at the last real chunk. It does
// not check linkage; see NewBatchHash.
func Pad(real []ChunkHash) ([MaxChunks]ChunkSlot, error) {
	var slots [MaxChunks]ChunkSlot
	k := len(real)
	if k == 0 || k > MaxChunks {
		return slots, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidChunkCount, k, MaxChunks)
	}
	for i := range real {
		slots[i] = ChunkSlot{Kind: SlotReal, Chunk: real[i]}
	}
	pad := PaddedChunkHash(&real[k-1])
	for i := k; i < MaxChunks; i++ {
		slots[i] = ChunkSlot{Kind: SlotPadding, Chunk: pad}
	}
	return slots, nil
}
