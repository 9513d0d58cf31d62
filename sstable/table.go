package sstable

import (
	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/status"
)

const (
	// MagicNumber identifies an sstable footer.
	MagicNumber uint64 = 0xdb4775248b80fb57
	// FooterLen is the fixed footer size: two 16-byte handles, 8 bytes of
	// padding, and the 8-byte magic.
	FooterLen = 48
	// handleLen is the encoded size of a BlockHandle.
	handleLen = 16
	// blockTrailerLen is the per-block compression tag plus CRC32.
	blockTrailerLen = 5

	compressionNone byte = 0

	// DefaultBlockSize is the target size of a data block body.
	DefaultBlockSize = 4 * 1024
)

// BlockHandle locates a block body within the file, excluding its trailer.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

func (h BlockHandle) append(dst []byte) []byte {
	dst = bin.AppendFixed64(dst, h.Offset)
	return bin.AppendFixed64(dst, h.Size)
}

func decodeHandle(src []byte) (BlockHandle, error) {
	if len(src) != handleLen {
		return BlockHandle{}, status.Corruption("invalid block handle length")
	}
	return BlockHandle{
		Offset: bin.Fixed64(src),
		Size:   bin.Fixed64(src[8:]),
	}, nil
}

type footer struct {
	indexHandle BlockHandle
	metaHandle  BlockHandle
}

func (f footer) append(dst []byte) []byte {
	dst = f.indexHandle.append(dst)
	dst = f.metaHandle.append(dst)
	dst = append(dst, make([]byte, 8)...)
	return bin.AppendFixed64(dst, MagicNumber)
}

func decodeFooter(src []byte) (footer, error) {
	if len(src) != FooterLen {
		return footer{}, status.Corruption("invalid footer length")
	}
	if bin.Fixed64(src[40:]) != MagicNumber {
		return footer{}, status.Corruption("invalid sstable magic number")
	}
	index, err := decodeHandle(src[:handleLen])
	if err != nil {
		return footer{}, err
	}
	meta, err := decodeHandle(src[handleLen : 2*handleLen])
	if err != nil {
		return footer{}, err
	}
	return footer{indexHandle: index, metaHandle: meta}, nil
}
