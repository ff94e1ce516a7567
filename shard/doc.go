// Package shard routes book metadata across N independent relational
// backing stores. A record key is mapped to exactly one shard by a
// deterministic 32-bit polynomial hash; single-key statements run only on
// that shard while collection-wide reads fan out to every shard and merge
// whatever rows the reachable shards return.
package shard
