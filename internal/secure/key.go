package secure

import (
	"crypto/md5"
	"encoding/hex"
)

// UniqueKey maps a cache directory and a raw caller key to a fixed-length,
// filesystem-safe file name. Pure and deterministic for any input,
// including the empty string.
func UniqueKey(directory, key string) string {
	sum := md5.Sum([]byte(directory + key))
	return hex.EncodeToString(sum[:])
}
