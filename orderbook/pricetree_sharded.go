package orderbook

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"rapidbook/domain"
)

// shardedTree is an alternate priceTree: an outer red-black tree of fixed
// 128-slot buckets, each covering a contiguous range of prices, trading
// mapListTree's O(n) new-level insert for O(log m) (m = bucket count)
// in exchange for a coarser best-price cache per bucket. Symbols with
// very wide, sparse price ranges (wide spreads relative to tick size)
// are the case this shape is suited for; it is not the Book default, but
// stays wired and tested as a drop-in priceTree.
type shardedTree struct {
	buckets    *rbt.Tree[int64, *priceBucket]
	bestBucket *priceBucket
	best       *Level
	descending bool
	bucketSize int64
}

var _ priceTree = (*shardedTree)(nil)

const defaultBucketSize = 128

func newShardedTree(descending bool, bucketSize int64) *shardedTree {
	var cmp func(a, b int64) int
	if descending {
		cmp = func(a, b int64) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			default:
				return 0
			}
		}
	} else {
		cmp = func(a, b int64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}
	return &shardedTree{
		buckets:    rbt.NewWith[int64, *priceBucket](cmp),
		descending: descending,
		bucketSize: bucketSize,
	}
}

// priceBucket holds every level whose price falls in [bucketID*bucketSize,
// (bucketID+1)*bucketSize), indexed by price&mask and threaded through a
// doubly linked list in price order.
type priceBucket struct {
	bucketID   int64
	levels     [defaultBucketSize]*Level
	best       *Level
	size       int
	descending bool
	mask       int64
}

func newPriceBucket(bucketID int64, descending bool, bucketSize int64) *priceBucket {
	return &priceBucket{bucketID: bucketID, descending: descending, mask: bucketSize - 1}
}

func (t *shardedTree) insert(order *domain.Order, key int64) {
	bucketID := key / t.bucketSize
	bucket, found := t.buckets.Get(bucketID)
	if !found {
		bucket = newPriceBucket(bucketID, t.descending, t.bucketSize)
		t.buckets.Put(bucketID, bucket)
	}
	lvl := bucket.levelFor(key)
	if lvl == nil {
		lvl = newLevel(key)
		bucket.link(lvl)
	}
	lvl.pushBack(order)
	t.refreshBest(bucket)
}

func (t *shardedTree) remove(order *domain.Order, key int64) {
	bucketID := key / t.bucketSize
	bucket, found := t.buckets.Get(bucketID)
	if !found {
		return
	}
	lvl := bucket.levelFor(key)
	if lvl == nil {
		return
	}
	lvl.remove(order)
	if lvl.empty() {
		bucket.unlink(lvl)
	}
	if bucket.size == 0 {
		t.buckets.Remove(bucketID)
		if t.bestBucket == bucket {
			t.bestBucket = nil
			t.best = nil
			t.refreshBestFromTree()
		}
		return
	}
	if t.bestBucket == bucket {
		t.best = bucket.best
	}
}

func (t *shardedTree) bestLevel() *Level {
	return t.best
}

func (t *shardedTree) levelAt(key int64) *Level {
	bucket, found := t.buckets.Get(key / t.bucketSize)
	if !found {
		return nil
	}
	return bucket.levelFor(key)
}

func (t *shardedTree) isEmpty() bool {
	return t.best == nil
}

func (t *shardedTree) size() int {
	n := 0
	it := t.buckets.Iterator()
	for it.Next() {
		n += it.Value().size
	}
	return n
}

func (t *shardedTree) depth(maxLevels int) []Level {
	if t.best == nil {
		return nil
	}
	// The bucket tree's comparator already ranks buckets best first for this
	// side, so an in-order walk visits each bucket's chain best first.
	out := make([]Level, 0, maxLevels)
	it := t.buckets.Iterator()
	for it.Next() && len(out) < maxLevels {
		t.collectBucket(it.Value(), &out, maxLevels)
	}
	return out
}

func (t *shardedTree) collectBucket(b *priceBucket, out *[]Level, maxLevels int) {
	for cur := b.best; cur != nil && len(*out) < maxLevels; cur = cur.next {
		*out = append(*out, *cur)
	}
}

func (t *shardedTree) refreshBest(bucket *priceBucket) {
	if t.bestBucket == nil {
		t.bestBucket = bucket
		t.best = bucket.best
		return
	}
	if t.betterBucket(bucket.bucketID, t.bestBucket.bucketID) {
		t.bestBucket = bucket
		t.best = bucket.best
	} else if bucket == t.bestBucket {
		t.best = bucket.best
	}
}

func (t *shardedTree) refreshBestFromTree() {
	if t.buckets.Empty() {
		return
	}
	// Left is the best bucket for either side: the comparator is reversed
	// for bids.
	node := t.buckets.Left()
	if node != nil {
		t.bestBucket = node.Value
		t.best = node.Value.best
	}
}

func (t *shardedTree) betterBucket(newID, existingID int64) bool {
	if t.descending {
		return newID > existingID
	}
	return newID < existingID
}

func (b *priceBucket) levelFor(price int64) *Level {
	idx := price & b.mask
	if idx < 0 {
		idx = -idx
	}
	lvl := b.levels[idx]
	if lvl != nil && lvl.Price == price {
		return lvl
	}
	return nil
}

func (b *priceBucket) link(lvl *Level) {
	idx := lvl.Price & b.mask
	if idx < 0 {
		idx = -idx
	}
	b.levels[idx] = lvl
	b.size++

	if b.best == nil {
		b.best = lvl
		return
	}
	if b.betterThan(lvl.Price, b.best.Price) {
		lvl.next = b.best
		b.best.prev = lvl
		b.best = lvl
		return
	}
	cur := b.best
	for cur.next != nil && !b.betterThan(lvl.Price, cur.next.Price) {
		cur = cur.next
	}
	lvl.next = cur.next
	lvl.prev = cur
	if cur.next != nil {
		cur.next.prev = lvl
	}
	cur.next = lvl
}

func (b *priceBucket) unlink(lvl *Level) {
	idx := lvl.Price & b.mask
	if idx < 0 {
		idx = -idx
	}
	b.levels[idx] = nil
	b.size--

	if lvl.prev != nil {
		lvl.prev.next = lvl.next
	} else {
		b.best = lvl.next
	}
	if lvl.next != nil {
		lvl.next.prev = lvl.prev
	}
	lvl.next, lvl.prev = nil, nil
}

func (b *priceBucket) betterThan(price1, price2 int64) bool {
	if b.descending {
		return price1 > price2
	}
	return price1 < price2
}
