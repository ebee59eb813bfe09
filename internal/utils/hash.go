package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Hex returns the hex digest of a source line. Line checksums detect
// merges of data that was produced from different versions of a file.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
