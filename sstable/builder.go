package sstable

import (
	"bufio"

	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/fs"
	"github.com/niuchangsheng/kv/status"
)

// Builder streams key/value pairs, in strictly ascending key order, into an
// sstable file. Values are written verbatim, so deletion markers propagate
// into the table.
type Builder struct {
	f          fs.File
	w          *bufio.Writer
	offset     uint64
	dataBlock  *BlockBuilder
	indexBlock *BlockBuilder
	blockSize  int
	numEntries int
	finished   bool
}

// NewBuilder creates the table file. blockSize is the target data-block
// body size; 0 selects DefaultBlockSize.
func NewBuilder(filesys fs.Filesys, fname string, blockSize int) (*Builder, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	f, err := filesys.Create(fname)
	if err != nil {
		return nil, status.IOError("create sstable "+fname, err)
	}
	return &Builder{
		f:          f,
		w:          bufio.NewWriterSize(f, 64*1024),
		dataBlock:  NewBlockBuilder(DefaultRestartInterval),
		indexBlock: NewBlockBuilder(1),
		blockSize:  blockSize,
	}, nil
}

// Add appends a key/value pair, flushing the current data block first when
// it has reached the target size.
func (b *Builder) Add(key, value []byte) error {
	if b.finished {
		return status.InvalidArgument("cannot add after Finish")
	}
	if b.dataBlock.CurrentSizeEstimate() >= b.blockSize && !b.dataBlock.Empty() {
		if err := b.flushDataBlock(); err != nil {
			return err
		}
	}
	b.dataBlock.Add(key, value)
	b.numEntries++
	return nil
}

// NumEntries reports the number of Add calls.
func (b *Builder) NumEntries() int { return b.numEntries }

func (b *Builder) flushDataBlock() error {
	if b.dataBlock.Empty() {
		return nil
	}
	lastKey := append([]byte{}, b.dataBlock.LastKey()...)
	handle, err := b.writeBlock(b.dataBlock.Finish())
	if err != nil {
		return err
	}
	b.indexBlock.Add(lastKey, handle.append(nil))
	b.dataBlock.Reset()
	return nil
}

// writeBlock writes a block body followed by the compression tag and the
// CRC32 of the body (the tag is not covered).
func (b *Builder) writeBlock(body []byte) (BlockHandle, error) {
	handle := BlockHandle{Offset: b.offset, Size: uint64(len(body))}
	if _, err := b.w.Write(body); err != nil {
		return BlockHandle{}, status.IOError("write block", err)
	}
	if err := b.w.WriteByte(compressionNone); err != nil {
		return BlockHandle{}, status.IOError("write block trailer", err)
	}
	if _, err := b.w.Write(bin.AppendFixed32(nil, bin.Checksum(body))); err != nil {
		return BlockHandle{}, status.IOError("write block checksum", err)
	}
	b.offset += uint64(len(body)) + blockTrailerLen
	return handle, nil
}

// Finish flushes the pending data block, writes the index block and footer,
// and closes the file.
func (b *Builder) Finish() error {
	if b.finished {
		return status.InvalidArgument("table already finished")
	}
	b.finished = true
	if err := b.flushDataBlock(); err != nil {
		b.f.Close()
		return err
	}
	indexHandle, err := b.writeBlock(b.indexBlock.Finish())
	if err != nil {
		b.f.Close()
		return err
	}
	ftr := footer{indexHandle: indexHandle}
	if _, err := b.w.Write(ftr.append(nil)); err != nil {
		b.f.Close()
		return status.IOError("write footer", err)
	}
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return status.IOError("flush sstable", err)
	}
	if err := b.f.Sync(); err != nil {
		b.f.Close()
		return status.IOError("sync sstable", err)
	}
	if err := b.f.Close(); err != nil {
		return status.IOError("close sstable", err)
	}
	return nil
}
