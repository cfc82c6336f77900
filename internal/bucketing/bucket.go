// Package bucketing provides deterministic user bucketing for traffic
// allocation. It must never change: the algorithm is part of the wire
// contract between every language implementation of this platform, and
// changing it re-shuffles every experiment in existence.
package bucketing

import "github.com/spaolacci/murmur3"

// buckets is the number of buckets a user key can hash into. This sets the
// minimum allocation granularity at 0.01%.
const buckets = 10000

// Bucket computes a deterministic bucket in [0, 9999] for the given user
// key and experiment salt. Same inputs always produce the same bucket,
// across languages and versions: it is the MurmurHash3 x86-32 hash (seed 0)
// of "userKey:salt" reduced into range with a double-mod to stay
// non-negative regardless of how the host language represents the hash.
func Bucket(userKey, salt string) int {
	h := murmur3.Sum32([]byte(userKey + ":" + salt))
	return int(((int64(h) % buckets) + buckets) % buckets)
}
