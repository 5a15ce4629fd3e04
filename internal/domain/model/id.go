package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewID returns a sortable identifier: the hex encoded UTC millisecond
// timestamp followed by 8 random bytes, with prefix prepended.
func NewID(prefix string) string {
	ts := time.Now().UTC().UnixMilli()
	random := make([]byte, 8)
	_, _ = rand.Read(random)

	buf := make([]byte, 0, len(prefix)+32)
	buf = append(buf, prefix...)
	buf = append(buf, hex.EncodeToString(int64ToBytes(ts))...)
	buf = append(buf, hex.EncodeToString(random)...)
	return string(buf)
}

func generateID() string {
	return NewID("")
}

func int64ToBytes(i int64) []byte {
	b := make([]byte, 8)
	for idx := 7; idx >= 0; idx-- {
		b[idx] = byte(i & 0xff)
		i >>= 8
	}
	return b
}
