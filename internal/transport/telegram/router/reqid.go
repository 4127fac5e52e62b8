package router

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"
)

var ridSeq atomic.Uint64

// newReqID returns a short id for correlating one request across log lines:
// base36 timestamp, base36 sequence, two random chars.
func newReqID() string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	seq := strconv.FormatUint(ridSeq.Add(1), 36)
	return ts + "-" + seq + randSuffix(2)
}

func randSuffix(n int) string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alpha[rand.Intn(len(alpha))]
	}
	return string(b)
}
