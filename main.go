// Command kv-demo walks the public API against a scratch database: puts,
// gets, deletes, an atomic batch, and an ordered scan.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/niuchangsheng/kv/db"
	"github.com/niuchangsheng/kv/status"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	name := "demo.db"
	defer db.DestroyDB(nil, name)

	d, err := db.Open(&db.Options{CreateIfMissing: true, InfoLog: logger}, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open failed:", status.Render(err))
		os.Exit(1)
	}
	defer d.Close()

	check := func(err error) {
		if err != nil {
			fmt.Fprintln(os.Stderr, status.Render(err))
			os.Exit(1)
		}
	}

	check(d.Put(nil, []byte("name"), []byte("kv")))
	check(d.Put(nil, []byte("kind"), []byte("log-structured")))
	check(d.Delete(nil, []byte("kind")))

	v, err := d.Get(nil, []byte("name"))
	check(err)
	fmt.Printf("name = %s\n", v)

	_, err = d.Get(nil, []byte("kind"))
	fmt.Printf("kind after delete: %s\n", status.Render(err))

	var batch db.WriteBatch
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	check(d.Write(nil, &batch))

	it := d.NewIterator(nil)
	fmt.Println("contents:")
	for it.SeekToFirst(); it.Valid(); it.Next() {
		fmt.Printf("  %s = %s\n", it.Key(), it.Value())
	}
	check(it.Status())
}
