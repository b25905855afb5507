// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package varint implements the compact signed varint encoding used by JeeLabs nodes.
//
// Each value is zig-zag folded (sign in the lowest bit) and emitted 7 bits at a time, most
// significant group first. The last byte of a value has its top bit set, which makes a
// sequence of values self-delimiting. Zero is encoded as the single byte 0x80.
//
// Reference: http://jeelabs.org/article/1620c/
package varint

import "errors"

// ErrTruncated is returned by Decode when the buffer ends in the middle of a value.
var ErrTruncated = errors.New("varint: truncated value")

// Append appends the encoding of v to buf and returns the extended buffer.
func Append(buf []byte, v int) []byte {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(u&0x7f) | 0x80
	for u >>= 7; u != 0; u >>= 7 {
		i--
		tmp[i] = byte(u & 0x7f)
	}
	return append(buf, tmp[i:]...)
}

// Encode encodes a slice of signed ints.
func Encode(arr []int) []byte {
	res := make([]byte, 0, len(arr)*2)
	for _, v := range arr {
		res = Append(res, v)
	}
	return res
}

// Decode decodes a buffer of varint bytes. The values decoded before a truncated trailing
// value are returned along with ErrTruncated.
func Decode(buf []byte) ([]int, error) {
	res := []int{}
	var u uint64
	for i, b := range buf {
		u = u<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			if i == len(buf)-1 {
				return res, ErrTruncated
			}
			continue
		}
		if u&1 == 0 {
			res = append(res, int(u>>1))
		} else {
			res = append(res, int(^(u >> 1)))
		}
		u = 0
	}
	return res, nil
}
