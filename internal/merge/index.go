package merge

import (
	"sort"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/record"
)

// blockIndex maps each blocking key to the ascending positions of the final
// records carrying it. It is updated in place on append and merge and always
// equals buildIndex over the current records.
type blockIndex struct {
	apn       map[string][]int
	addr      map[string][]int
	ownerAddr map[string][]int
}

func newBlockIndex() *blockIndex {
	return &blockIndex{
		apn:       map[string][]int{},
		addr:      map[string][]int{},
		ownerAddr: map[string][]int{},
	}
}

// buildIndex full rebuild, used to seed from the existing set
func buildIndex(records []*models.CanonicalRecord) *blockIndex {
	ix := newBlockIndex()
	for idx, r := range records {
		ix.add(idx, record.Key(r))
	}
	return ix
}

func (ix *blockIndex) add(idx int, k models.MatchKeys) {
	insert(ix.apn, k.APN, idx)
	insert(ix.addr, k.AddrFull, idx)
	insert(ix.ownerAddr, k.OwnerAddrLite, idx)
}

func (ix *blockIndex) remove(idx int, k models.MatchKeys) {
	drop(ix.apn, k.APN, idx)
	drop(ix.addr, k.AddrFull, idx)
	drop(ix.ownerAddr, k.OwnerAddrLite, idx)
}

// replace moves position idx from the old keys to the new ones.
func (ix *blockIndex) replace(idx int, old, updated models.MatchKeys) {
	ix.remove(idx, old)
	ix.add(idx, updated)
}

// candidates union of the APN, address and owner-address postings, in that
// order, first occurrence kept.
func (ix *blockIndex) candidates(k models.MatchKeys) []int {
	var out []int
	seen := map[int]bool{}
	collect := func(m map[string][]int, key string) {
		if key == "" {
			return
		}
		for _, idx := range m[key] {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	collect(ix.apn, k.APN)
	collect(ix.addr, k.AddrFull)
	collect(ix.ownerAddr, k.OwnerAddrLite)
	return out
}

func insert(m map[string][]int, key string, idx int) {
	if key == "" {
		return
	}
	list := m[key]
	pos := sort.SearchInts(list, idx)
	if pos < len(list) && list[pos] == idx {
		return
	}
	list = append(list, 0)
	copy(list[pos+1:], list[pos:])
	list[pos] = idx
	m[key] = list
}

func drop(m map[string][]int, key string, idx int) {
	if key == "" {
		return
	}
	list := m[key]
	pos := sort.SearchInts(list, idx)
	if pos == len(list) || list[pos] != idx {
		return
	}
	list = append(list[:pos], list[pos+1:]...)
	if len(list) == 0 {
		delete(m, key)
		return
	}
	m[key] = list
}
