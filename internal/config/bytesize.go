package config

import (
	"fmt"

	"github.com/docker/go-units"
)

// ByteSize is a size in bytes decoded from human readable values such as "500MB" or "3GB".
// Units are binary: 1MB = 1024*1024 bytes.
type ByteSize int64

// Decode implements envconfig.Decoder.
func (b *ByteSize) Decode(value string) error {
	size, err := units.RAMInBytes(value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", value, err)
	}
	if size < 0 {
		return fmt.Errorf("invalid byte size %q: negative", value)
	}
	*b = ByteSize(size)
	return nil
}

// Int64 returns the size as a plain int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}
