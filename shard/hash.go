package shard

// Hash computes the rolling polynomial hash of key: for every code point
// c, h = h*31 + c with wrapping 32-bit arithmetic. The empty key hashes
// to 0. The multiply-by-31 form matches the hash used by the front end
// when it pre-computes a record's shard, so the truncation behavior must
// stay exactly 32-bit: no arbitrary precision, no seed.
func Hash(key string) int32 {
	var h int32
	for _, c := range key {
		h = h*31 + c
	}
	return h
}

// Index maps key into [0, n) as abs(Hash(key)) mod n. n must be positive.
// The absolute value is taken in 64-bit space so MinInt32 cannot wrap back
// to a negative index.
func Index(key string, n int) int {
	v := int64(Hash(key))
	if v < 0 {
		v = -v
	}
	return int(v % int64(n))
}
