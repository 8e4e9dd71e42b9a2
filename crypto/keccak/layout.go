package keccak

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Layout locates input and digest cells in a keccak table with a given
// number of rows per permutation round. Every absorption block occupies
// (NumRounds+1)·RowsPerRound rows; the 17 input words of a block sit one per
// round starting at the second round, and the 4 digest words sit in the
// last four rounds of the final block.
type Layout struct {
	RowsPerRound int

	// PreimageRows holds one row per input byte, each preimage zero-padded
	// to a whole number of blocks.
	PreimageRows [][]int

	// DigestRows holds the 32 digest cell rows of each preimage.
	DigestRows [][]int

	// NumBlocks is the total number of absorption blocks.
	NumBlocks int
}

// BlockRows returns the number of table rows per absorption block.
func BlockRows(rowsPerRound int) int {
	return (NumRounds + 1) * rowsPerRound
}

// Capacity returns how many absorption blocks fit into a table of numRows
// rows, two blocks being reserved.
func Capacity(numRows, rowsPerRound int) int {
	if numRows <= 0 || rowsPerRound <= 0 {
		return 0
	}
	return max(numRows/BlockRows(rowsPerRound)-2, 0)
}

// ComputeLayout derives the layout for preimages of the given full widths.
func ComputeLayout(lengths []int, rowsPerRound int) (*Layout, error) {
	if rowsPerRound < WordBytes {
		return nil, fmt.Errorf("%w: %d < %d", ErrRowsPerRound, rowsPerRound, WordBytes)
	}
	var (
		blockRows   = BlockRows(rowsPerRound)
		digestStart = (NumRounds - 3) * rowsPerRound
		l           = &Layout{RowsPerRound: rowsPerRound}
		ctr         int
	)
	for _, n := range lengths {
		blocks := NumBlocks(n)
		pre := make([]int, 0, blocks*RateBytes)
		dig := make([]int, 0, DigestLen)
		for b := 0; b < blocks; b++ {
			base := ctr * blockRows
			for j := 0; j < RateBytes/WordBytes; j++ {
				for k := 0; k < WordBytes; k++ {
					pre = append(pre, base+rowsPerRound+j*rowsPerRound+k)
				}
			}
			if b == blocks-1 {
				for j := 0; j < DigestLen/WordBytes; j++ {
					for k := 0; k < WordBytes; k++ {
						dig = append(dig, base+digestStart+j*rowsPerRound+k)
					}
				}
			}
			ctr++
		}
		l.PreimageRows = append(l.PreimageRows, pre)
		l.DigestRows = append(l.DigestRows, dig)
	}
	l.NumBlocks = ctr
	return l, nil
}

// layoutCache memoizes layouts; a batch always produces the same preimage
// widths, so steady state is a single entry per rows-per-round setting.
type layoutCache struct {
	cache *lru.Cache[string, *Layout]
}

func newLayoutCache(size int) (*layoutCache, error) {
	c, err := lru.New[string, *Layout](size)
	if err != nil {
		return nil, err
	}
	return &layoutCache{cache: c}, nil
}

func layoutKey(lengths []int, rowsPerRound int) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(rowsPerRound))
	for _, n := range lengths {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

func (c *layoutCache) get(lengths []int, rowsPerRound int) (*Layout, error) {
	key := layoutKey(lengths, rowsPerRound)
	if l, ok := c.cache.Get(key); ok {
		return l, nil
	}
	l, err := ComputeLayout(lengths, rowsPerRound)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, l)
	return l, nil
}
