package records

import (
	"math"
	"net/netip"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/localdns/internal/dns/common/utils"
)

type match struct {
	addr netip.Addr
	ok   bool
}

// index speeds up Lookup: a bloom filter over the keys rules out most
// candidate parents without a map probe, and an LRU remembers recent answers.
// Both belong to a single Store version.
type index struct {
	bloom *bitsbloom.BloomFilter
	memo  *lru.Cache[string, match]
}

func newIndex(hosts []string, o options) *index {
	m, k := size(uint64(len(hosts)), o.fpRate)
	bf := bitsbloom.New(uint(m), uint(k))
	for _, h := range hosts {
		bf.AddString(h)
	}

	idx := &index{bloom: bf}
	if o.cacheSize > 0 {
		memo, err := lru.New[string, match](o.cacheSize)
		if err == nil {
			idx.memo = memo
		}
	}
	return idx
}

func (x *index) lookup(name string, entries map[string]netip.Addr) (netip.Addr, bool) {
	if x.memo != nil {
		if m, ok := x.memo.Get(name); ok {
			return m.addr, m.ok
		}
	}

	var res match
	for _, candidate := range utils.Ancestors(name) {
		if !x.bloom.TestString(candidate) {
			continue
		}
		if addr, ok := entries[candidate]; ok {
			res = match{addr: addr, ok: true}
			break
		}
	}

	if x.memo != nil {
		x.memo.Add(name, res)
	}
	return res.addr, res.ok
}

// size computes bloom filter parameters from capacity n and target
// false-positive rate p:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Results are clamped to at least 1.
func size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}
