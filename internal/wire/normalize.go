package wire

import (
	"bytes"
	"encoding/binary"
)

var bundleTag = []byte("#bundle\x00")

// bundleHeader is "#bundle\0" plus the 8-byte time tag.
const bundleHeader = 16

// SlashAddresses returns data with a leading "/" added to every message
// address that lacks one, including messages nested in bundles. OSC decoders
// skip packets whose first byte is neither '/' nor '#', while TSPS senders
// may emit "TSPS/personEntered/". Input that does not look like OSC is
// returned unchanged so the decoder can reject it.
func SlashAddresses(data []byte) []byte {
	out, ok := slashPacket(data)
	if !ok {
		return data
	}
	return out
}

func slashPacket(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return data, false
	}
	switch {
	case data[0] == '/':
		return data, true
	case bytes.HasPrefix(data, bundleTag):
		return slashBundle(data)
	case data[0] == '#':
		return data, false
	default:
		return slashMessage(data)
	}
}

func slashMessage(data []byte) ([]byte, bool) {
	end := bytes.IndexByte(data, 0)
	if end <= 0 {
		return data, false
	}
	rest := padded(end)
	if rest > len(data) {
		rest = len(data)
	}
	addrLen := end + 1
	out := make([]byte, padded(addrLen), padded(addrLen)+len(data)-rest)
	out[0] = '/'
	copy(out[1:], data[:end])
	return append(out, data[rest:]...), true
}

func slashBundle(data []byte) ([]byte, bool) {
	if len(data) < bundleHeader {
		return data, false
	}
	out := append([]byte(nil), data[:bundleHeader]...)
	for i := bundleHeader; i < len(data); {
		if i+4 > len(data) {
			return data, false
		}
		size := int(binary.BigEndian.Uint32(data[i : i+4]))
		i += 4
		if size < 0 || i+size > len(data) {
			return data, false
		}
		elem, ok := slashPacket(data[i : i+size])
		if !ok {
			return data, false
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(elem)))
		out = append(out, elem...)
		i += size
	}
	return out, true
}

// padded is the size of an OSC string of n bytes plus its NUL terminator,
// rounded up to a multiple of 4.
func padded(n int) int {
	return (n + 1 + 3) &^ 3
}
