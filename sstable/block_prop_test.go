package sstable

import (
	"bytes"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// sortedUniqueKeys turns arbitrary strings into a valid block input:
// non-empty, sorted, and deduplicated.
func sortedUniqueKeys(raw []string) [][]byte {
	seen := make(map[string]bool)
	var keys [][]byte
	for _, s := range raw {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		keys = append(keys, []byte(s))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys
}

func TestBlockProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("build then read yields the same entries in order", prop.ForAll(
		func(raw []string, interval uint8) bool {
			keys := sortedUniqueKeys(raw)
			b := NewBlockBuilder(int(interval%31) + 1)
			for i, k := range keys {
				b.Add(k, []byte{byte(i)})
			}
			r, err := NewBlockReader(b.Finish())
			if err != nil {
				return false
			}
			i := 0
			for r.SeekToFirst(); r.Valid(); r.Next() {
				if !bytes.Equal(r.Key(), keys[i]) || !bytes.Equal(r.Value(), []byte{byte(i)}) {
					return false
				}
				i++
			}
			return r.Err() == nil && i == len(keys)
		},
		gen.SliceOf(gen.AnyString()),
		gen.UInt8(),
	))

	properties.Property("Seek finds the first key >= target", prop.ForAll(
		func(raw []string, target string) bool {
			keys := sortedUniqueKeys(raw)
			if len(keys) == 0 || target == "" {
				return true
			}
			b := NewBlockBuilder(4)
			for _, k := range keys {
				b.Add(k, []byte("v"))
			}
			r, err := NewBlockReader(b.Finish())
			if err != nil {
				return false
			}
			r.Seek([]byte(target))
			want := -1
			for i, k := range keys {
				if bytes.Compare(k, []byte(target)) >= 0 {
					want = i
					break
				}
			}
			if want == -1 {
				return !r.Valid() && r.Err() == nil
			}
			return r.Valid() && bytes.Equal(r.Key(), keys[want])
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
