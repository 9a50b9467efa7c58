package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// CalculateStringMD5 computes the hex MD5 digest of a string.
// Used for content-addressable keys, not for anything security sensitive.
func CalculateStringMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
