package db

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
)

// IteratorSuite exercises the public cursor across memtable and sstable
// sources, with a buffer small enough that data spans both.
type IteratorSuite struct {
	DbSuite
}

func (s *IteratorSuite) SetupTest() {
	s.base = afero.NewMemMapFs()
	s.db = s.open(&Options{CreateIfMissing: true, WriteBufferSize: 16 * 1024})
}

func TestIteratorSuite(t *testing.T) {
	suite.Run(t, new(IteratorSuite))
}

func (s *IteratorSuite) TestStartsInvalid() {
	s.put("a", "1")
	it := s.db.NewIterator(nil)
	s.False(it.Valid())
	s.Empty(it.Key())
	s.Empty(it.Value())
}

func (s *IteratorSuite) TestForwardScanMemtableOnly() {
	s.put("b", "2")
	s.put("a", "1")
	s.put("c", "3")
	s.Equal([][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}}, s.entries())
}

func (s *IteratorSuite) TestSeek() {
	for _, k := range []string{"b", "d", "f"} {
		s.put(k, "v-"+k)
	}
	it := s.db.NewIterator(nil)

	it.Seek([]byte("c"))
	s.Require().True(it.Valid())
	s.Equal("d", string(it.Key()))

	it.Seek([]byte("b"))
	s.Require().True(it.Valid())
	s.Equal("b", string(it.Key()))
	s.Equal("v-b", string(it.Value()))

	it.Seek([]byte("z"))
	s.False(it.Valid(), "seek beyond the last key is invalid")
}

func (s *IteratorSuite) TestSeekSkipsTombstone() {
	s.put("a", "1")
	s.put("b", "2")
	s.delete("b")
	s.put("c", "3")
	it := s.db.NewIterator(nil)
	it.Seek([]byte("b"))
	s.Require().True(it.Valid())
	s.Equal("c", string(it.Key()), "deleted key is skipped")
}

func (s *IteratorSuite) TestPrevSaturatesAtFirst() {
	s.put("a", "1")
	s.put("b", "2")
	it := s.db.NewIterator(nil)
	it.SeekToLast()
	s.Require().True(it.Valid())
	s.Equal("b", string(it.Key()))

	it.Prev()
	s.Require().True(it.Valid())
	s.Equal("a", string(it.Key()))

	it.Prev()
	s.Require().True(it.Valid(), "Prev at the first entry saturates")
	s.Equal("a", string(it.Key()))
}

func (s *IteratorSuite) TestPrevSaturatesPastLeadingTombstones() {
	s.put("a", "1")
	s.delete("a")
	s.put("b", "2")
	s.put("c", "3")
	it := s.db.NewIterator(nil)
	it.SeekToLast()
	it.Prev()
	s.Require().True(it.Valid())
	s.Equal("b", string(it.Key()))
	it.Prev()
	s.Require().True(it.Valid(), "saturates at the first live entry")
	s.Equal("b", string(it.Key()))
}

func (s *IteratorSuite) TestBackwardScan() {
	for i := 0; i < 100; i++ {
		s.put(key(i), value(i))
	}
	it := s.db.NewIterator(nil)
	it.SeekToLast()
	for i := 99; i > 0; i-- {
		s.Require().True(it.Valid())
		s.Equal(key(i), string(it.Key()))
		it.Prev()
	}
	s.Require().True(it.Valid())
	s.Equal(key(0), string(it.Key()))
}

func (s *IteratorSuite) TestDirectionSwitch() {
	for _, k := range []string{"a", "b", "c", "d"} {
		s.put(k, "v")
	}
	it := s.db.NewIterator(nil)
	it.Seek([]byte("c"))
	s.Equal("c", string(it.Key()))
	it.Prev()
	s.Equal("b", string(it.Key()))
	it.Next()
	s.Equal("c", string(it.Key()))
	it.Next()
	s.Equal("d", string(it.Key()))
	it.Prev()
	s.Equal("c", string(it.Key()))
}

func (s *IteratorSuite) TestMergesMemtableOverSSTables() {
	// flushed base data
	for i := 0; i < 3000; i++ {
		s.put(key(i), "old")
	}
	s.Require().NotEmpty(s.db.tables)
	// live overrides
	s.put(key(10), "new")
	s.delete(key(11))

	it := s.db.NewIterator(nil)
	it.Seek([]byte(key(10)))
	s.Require().True(it.Valid())
	s.Equal(key(10), string(it.Key()))
	s.Equal("new", string(it.Value()), "live memtable shadows the flushed value")

	it.Next()
	s.Require().True(it.Valid())
	s.Equal(key(12), string(it.Key()), "deleted key is suppressed")
}

func (s *IteratorSuite) TestFullScanAcrossSources() {
	const n = 8000
	for i := 0; i < n; i++ {
		s.put(key(i), value(i))
	}
	s.Require().NotEmpty(s.db.tables, "data must span sstables and memtable")

	got := s.entries()
	s.Require().Len(got, n)
	for i, kv := range got {
		s.Equal(key(i), kv[0])
		s.Equal(value(i), kv[1])
	}
}

func (s *IteratorSuite) TestScanSurvivesRestart() {
	for i := 0; i < 5000; i++ {
		s.put(key(i), value(i))
	}
	s.Restart()
	got := s.entries()
	s.Require().Len(got, 5000)
	s.Equal(key(0), got[0][0])
	s.Equal(key(4999), got[4999][0])
}

func (s *IteratorSuite) TestDuplicatesAcrossTablesAppearOnce() {
	for round := 0; round < 3; round++ {
		for i := 0; i < 2000; i++ {
			s.put(key(i), fmt.Sprintf("round%d", round))
		}
	}
	got := s.entries()
	s.Require().Len(got, 2000, "each key appears once despite living in several tables")
	for _, kv := range got {
		s.Equal("round2", kv[1], "newest version wins")
	}
}
