// kv-bench measures the engine's fill and read throughput, with LevelDB and
// Pebble adapters for comparison.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/niuchangsheng/kv/db"
	"github.com/niuchangsheng/kv/leveldb"
	"github.com/niuchangsheng/kv/pebbledb"
	"github.com/niuchangsheng/kv/status"
)

const dbPath = "benchmark.db"

// database is the store surface the benchmarks drive.
type database interface {
	Get(k []byte) ([]byte, bool)
	Put(k, v []byte)
	Delete(k []byte)
	Close()
}

// kvDatabase adapts the engine, panicking on errors the way the comparison
// adapters do.
type kvDatabase struct {
	db *db.DB
	wo *db.WriteOptions
}

func newKvDatabase() *kvDatabase {
	d, err := db.Open(&db.Options{CreateIfMissing: true}, dbPath)
	if err != nil {
		panic(err)
	}
	return &kvDatabase{db: d, wo: &db.WriteOptions{Sync: *syncWrites}}
}

func (d *kvDatabase) Get(k []byte) ([]byte, bool) {
	v, err := d.db.Get(nil, k)
	if status.IsNotFound(err) {
		return nil, false
	}
	if err != nil {
		panic(err)
	}
	return v, true
}

func (d *kvDatabase) Put(k, v []byte) {
	if err := d.db.Put(d.wo, k, v); err != nil {
		panic(err)
	}
}

func (d *kvDatabase) Delete(k []byte) {
	if err := d.db.Delete(d.wo, k); err != nil {
		panic(err)
	}
}

func (d *kvDatabase) Close() {
	if err := d.db.Close(); err != nil {
		panic(err)
	}
}

// noopDatabase measures harness overhead.
type noopDatabase struct{}

func (noopDatabase) Get(k []byte) ([]byte, bool) { return nil, false }
func (noopDatabase) Put(k, v []byte)             {}
func (noopDatabase) Delete(k []byte)             {}
func (noopDatabase) Close()                      {}

var (
	benchmarks = flag.String("benchmarks", "fillseq,readseq,fillrandom,readrandom", "comma-separated list of benchmarks to run")
	dbType     = flag.String("db", "kv", "database to use (kv|leveldb|pebble|noop)")
	numEntries = flag.Int("entries", 1000000, "number of entries to put in database")
	numReads   = flag.Int("reads", -1, "number of reads to perform (-1 to copy entries)")
	syncWrites = flag.Bool("sync", false, "sync the log on every write (kv only)")
	deleteDb   = flag.Bool("delete-db", true, "delete database directory on completion")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile = flag.String("memprofile", "", "write memory profile to `file`")
)

func initDb() database {
	if err := os.RemoveAll(dbPath); err != nil {
		log.Fatal("could not remove old database: ", err)
	}
	switch *dbType {
	case "kv":
		return newKvDatabase()
	case "leveldb":
		return leveldb.New(dbPath)
	case "pebble":
		return pebbledb.New(dbPath)
	case "noop":
		return noopDatabase{}
	}
	panic(fmt.Errorf("unknown database type %s", *dbType))
}

func writeMemProfile(fname string) {
	f, err := os.Create(fname)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
	f.Close()
}

func showNum(i int) string {
	if i > 2000 {
		if i%1000 == 0 {
			return fmt.Sprintf("%dK", i/1000)
		}
		return fmt.Sprintf("%.1fK", float64(i)/1000)
	}
	return fmt.Sprintf("%d", i)
}

func runBenchmarks(store database) {
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		defer writeMemProfile(*memprofile)
	}

	keyLen := len("key0000000000000000")
	for _, name := range strings.Split(*benchmarks, ",") {
		s := NewBench(name)
		switch name {
		case "fillseq":
			for i := 0; i < *numEntries; i++ {
				k, v := s.NextKey(), s.Value()
				store.Put(k, v)
				s.FinishedSingleOp(keyLen + len(v))
			}
		case "fillrandom":
			for i := 0; i < *numEntries; i++ {
				k, v := s.RandomKey(*numEntries), s.Value()
				store.Put(k, v)
				s.FinishedSingleOp(keyLen + len(v))
			}
		case "readseq":
			for i := 0; i < *numReads; i++ {
				if v, ok := store.Get(s.NextKey()); ok {
					s.FinishedSingleOp(keyLen + len(v))
				}
			}
		case "readrandom":
			// read in a different random order from random writes
			s.ReSeed(1)
			for i := 0; i < *numReads; i++ {
				if v, ok := store.Get(s.RandomKey(*numEntries)); ok {
					s.FinishedSingleOp(keyLen + len(v))
				}
			}
		case "deleteseq":
			for i := 0; i < *numEntries; i++ {
				store.Delete(s.NextKey())
				s.FinishedSingleOp(keyLen)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown benchmark %s\n", name)
			os.Exit(1)
		}
		s.Report()
	}
	store.Close()
}

func main() {
	flag.Parse()
	if len(flag.Args()) > 0 {
		fmt.Fprintln(os.Stderr, "extra command line arguments", flag.Args())
		flag.Usage()
		os.Exit(1)
	}
	if *numReads == -1 {
		*numReads = *numEntries
	}

	totalBytes := float64(*numEntries * (19 + 100))
	for _, info := range []struct {
		Key   string
		Value string
	}{
		{"database", *dbType},
		{"entries", showNum(*numEntries)},
		{"total data (MB)", fmt.Sprintf("%.1f", totalBytes/(1024*1024))},
	} {
		fmt.Printf("%20s %s\n", info.Key+":", info.Value)
	}
	fmt.Println(strings.Repeat("-", 30))

	start := time.Now()
	runBenchmarks(initDb())
	fmt.Printf("%-20s : %6.1fs\n", "total", time.Since(start).Seconds())

	if *deleteDb {
		os.RemoveAll(dbPath)
	}
}
