package wal

import (
	"fmt"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niuchangsheng/kv/fs"
	"github.com/niuchangsheng/kv/status"
)

type walFixture struct {
	base    afero.Fs
	filesys fs.Filesys
}

func newFixture() *walFixture {
	base := afero.NewMemMapFs()
	return &walFixture{base: base, filesys: fs.FromAfero(base)}
}

func (fx *walFixture) writer(t *testing.T) *Writer {
	w, err := NewWriter(fx.filesys, "LOG")
	require.NoError(t, err)
	return w
}

func (fx *walFixture) reader(t *testing.T) *Reader {
	r, err := NewReader(fx.filesys, "LOG")
	require.NoError(t, err)
	return r
}

func (fx *walFixture) bytes(t *testing.T) []byte {
	data, err := afero.ReadFile(fx.base, "LOG")
	require.NoError(t, err)
	return data
}

func (fx *walFixture) rewrite(t *testing.T, data []byte) {
	require.NoError(t, afero.WriteFile(fx.base, "LOG", data, 0644))
}

type opRecorder struct {
	ops []string
	err error
}

func (h *opRecorder) Put(key, value []byte) error {
	h.ops = append(h.ops, fmt.Sprintf("put %s=%s", key, value))
	return h.err
}

func (h *opRecorder) Delete(key []byte) error {
	h.ops = append(h.ops, fmt.Sprintf("del %s", key))
	return h.err
}

func TestEmptyLog(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.Close())
	r := fx.reader(t)
	defer r.Close()
	_, err := r.ReadRecord()
	assert.Equal(t, io.EOF, err)
}

func TestRecordRoundtrip(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("key"), []byte("value")))
	require.NoError(t, w.Close())

	r := fx.reader(t)
	defer r.Close()
	rec, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, RecordPut, rec.Type)
	assert.Equal(t, []byte("key"), rec.Key)
	assert.Equal(t, []byte("value"), rec.Value)
	_, err = r.ReadRecord()
	assert.Equal(t, io.EOF, err)
}

func TestRecordWireFormat(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("k"), []byte("v")))
	require.NoError(t, w.Close())
	data := fx.bytes(t)
	require.Len(t, data, 1+4+4+1+1+4)
	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, []byte{1, 0, 0, 0}, data[1:5], "key length LE")
	assert.Equal(t, []byte{1, 0, 0, 0}, data[5:9], "value length LE")
	assert.Equal(t, byte('k'), data[9])
	assert.Equal(t, byte('v'), data[10])
}

func TestMultipleRecordsInOrder(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("a"), []byte("1")))
	require.NoError(t, w.AddRecord(RecordSync, nil, nil))
	require.NoError(t, w.AddRecord(RecordDelete, []byte("a"), nil))
	require.NoError(t, w.AddRecord(RecordPut, []byte("b"), []byte("2")))
	require.NoError(t, w.Close())

	h := &opRecorder{}
	r := fx.reader(t)
	defer r.Close()
	require.NoError(t, r.Replay(h))
	assert.Equal(t, []string{"put a=1", "del a", "put b=2"}, h.ops)
}

func TestEmptyKeyAndValueRoundtrip(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("k"), nil))
	require.NoError(t, w.Close())
	r := fx.reader(t)
	defer r.Close()
	rec, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Empty(t, rec.Value)
}

func TestAppendAcrossReopen(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("a"), []byte("1")))
	require.NoError(t, w.Close())
	w = fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("b"), []byte("2")))
	require.NoError(t, w.Close())

	h := &opRecorder{}
	r := fx.reader(t)
	defer r.Close()
	require.NoError(t, r.Replay(h))
	assert.Equal(t, []string{"put a=1", "put b=2"}, h.ops)
}

func TestEofRecordTerminatesReplay(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("a"), []byte("1")))
	require.NoError(t, w.AddRecord(RecordEof, nil, nil))
	require.NoError(t, w.AddRecord(RecordPut, []byte("b"), []byte("2")))
	require.NoError(t, w.Close())

	h := &opRecorder{}
	r := fx.reader(t)
	defer r.Close()
	require.NoError(t, r.Replay(h))
	assert.Equal(t, []string{"put a=1"}, h.ops, "records after Eof are not replayed")
}

func TestTruncatedRecordIsError(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("aaa"), []byte("111")))
	require.NoError(t, w.AddRecord(RecordPut, []byte("bbb"), []byte("222")))
	require.NoError(t, w.Close())
	data := fx.bytes(t)
	fx.rewrite(t, data[:len(data)-1])

	r := fx.reader(t)
	defer r.Close()
	_, err := r.ReadRecord()
	require.NoError(t, err, "first record is intact")
	_, err = r.ReadRecord()
	require.Error(t, err)
	assert.True(t, status.IsIOError(err) || status.IsCorruption(err))
}

func TestHeaderOnlyTrailingRecord(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("a"), []byte("1")))
	require.NoError(t, w.Close())
	// append a bare record type byte with no header or payload
	data := append(fx.bytes(t), byte(RecordPut))
	fx.rewrite(t, data)

	h := &opRecorder{}
	r := fx.reader(t)
	defer r.Close()
	err := r.Replay(h)
	require.Error(t, err, "trailing partial record must not be silently dropped")
	assert.Equal(t, []string{"put a=1"}, h.ops)
}

func TestChecksumMismatchIsCorruption(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("key"), []byte("value")))
	require.NoError(t, w.Close())
	data := fx.bytes(t)
	data[10] ^= 0xff // flip a key byte
	fx.rewrite(t, data)

	r := fx.reader(t)
	defer r.Close()
	_, err := r.ReadRecord()
	assert.True(t, status.IsCorruption(err), "got %v", err)
}

func TestUnknownRecordTypeIsCorruption(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("key"), []byte("value")))
	require.NoError(t, w.Close())
	data := fx.bytes(t)
	data[0] = 9
	fx.rewrite(t, data)

	r := fx.reader(t)
	defer r.Close()
	_, err := r.ReadRecord()
	assert.True(t, status.IsCorruption(err), "got %v", err)
}

func TestEveryByteFlipIsDetected(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("key"), []byte("val")))
	require.NoError(t, w.Close())
	good := fx.bytes(t)

	for i := range good {
		data := append([]byte{}, good...)
		data[i] ^= 0x40
		fx.rewrite(t, data)
		r := fx.reader(t)
		rec, err := r.ReadRecord()
		if err == nil {
			assert.Failf(t, "undetected corruption", "flip at byte %d decoded %v", i, rec)
		}
		r.Close()
	}
}

func TestWriterClosedRejectsAppend(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.Close())
	err := w.AddRecord(RecordPut, []byte("k"), []byte("v"))
	assert.True(t, status.IsIOError(err))
	assert.True(t, status.IsIOError(w.Sync()))
}

func TestHandlerErrorAbortsReplay(t *testing.T) {
	fx := newFixture()
	w := fx.writer(t)
	require.NoError(t, w.AddRecord(RecordPut, []byte("a"), []byte("1")))
	require.NoError(t, w.AddRecord(RecordPut, []byte("b"), []byte("2")))
	require.NoError(t, w.Close())

	h := &opRecorder{err: status.Corruption("handler failed")}
	r := fx.reader(t)
	defer r.Close()
	err := r.Replay(h)
	assert.True(t, status.IsCorruption(err))
	assert.Len(t, h.ops, 1)
}
