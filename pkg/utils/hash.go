package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// CacheKey builds "<namespace>:<md5 of parts>" so keys stay short regardless
// of how many query parameters feed them.
func CacheKey(namespace string, parts ...string) string {
	return namespace + ":" + HashString(strings.Join(parts, "\x1f"))
}
