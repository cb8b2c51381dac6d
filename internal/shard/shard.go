// Package shard provides feed partition key generation for collection indexes.
package shard

import (
	"fmt"
	"hash/fnv"
)

// FeedPK computes the sharded feed partition key for a document.
// With numShards=1, all documents go to shard "00".
// With numShards>1, documents are distributed across shards based on the id hash.
func FeedPK(collection, id string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s#00", collection)
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%02x", collection, shard)
}

// FeedPKs returns every feed partition key of a collection, in shard order.
func FeedPKs(collection string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	pks := make([]string, numShards)
	for i := range pks {
		pks[i] = fmt.Sprintf("%s#%02x", collection, i)
	}
	return pks
}
