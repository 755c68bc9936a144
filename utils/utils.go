package utils

import (
	"crypto/md5"
	"strconv"

	"github.com/gofrs/uuid"
)

// GenUuid derives a stable uuid from parts. Order matters, and every part is
// length prefixed so ("ab", "c") and ("a", "bc") differ.
func GenUuid(parts ...string) uuid.UUID {
	var b []byte
	for _, p := range parts {
		b = strconv.AppendInt(b, int64(len(p)), 10)
		b = append(b, ':')
		b = append(b, p...)
	}
	return uuidHash(b)
}

func uuidHash(b []byte) uuid.UUID {
	sum := md5.Sum(b)
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum[:])
}
