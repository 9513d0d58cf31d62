package fs

import (
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

type aferoFs struct {
	fs afero.Afero
	*Stats
}

type readFile struct {
	f    afero.File
	size int64
	*Stats
}

func (f readFile) Size() int64 { return f.size }

func (f readFile) ReadAt(offset int64, length int) ([]byte, error) {
	p := make([]byte, length)
	n, err := f.f.ReadAt(p, offset)
	f.readOp(n)
	if err != nil {
		return nil, err
	}
	if n != length {
		return nil, fmt.Errorf("short ReadAt(%d, %d) -> %d bytes for %s", offset, length, n, f.f.Name())
	}
	return p, nil
}

func (f readFile) Close() error { return f.f.Close() }

type writeFile struct {
	f afero.File
	*Stats
}

func (f writeFile) Write(p []byte) (int, error) {
	n, err := f.f.Write(p)
	f.writeOp(n)
	return n, err
}

func (f writeFile) Sync() error  { return f.f.Sync() }
func (f writeFile) Close() error { return f.f.Close() }

func (fs aferoFs) mkParent(fname string) error {
	dir := path.Dir(fname)
	if dir == "." || dir == "/" {
		return nil
	}
	return fs.fs.MkdirAll(dir, 0755)
}

func (fs aferoFs) Open(fname string) (ReadFile, error) {
	f, err := fs.fs.Open(fname)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return readFile{f, st.Size(), fs.Stats}, nil
}

func (fs aferoFs) Create(fname string) (File, error) {
	if err := fs.mkParent(fname); err != nil {
		return nil, err
	}
	f, err := fs.fs.Create(fname)
	if err != nil {
		return nil, err
	}
	return writeFile{f, fs.Stats}, nil
}

func (fs aferoFs) Append(fname string) (File, error) {
	if err := fs.mkParent(fname); err != nil {
		return nil, err
	}
	f, err := fs.fs.OpenFile(fname, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return writeFile{f, fs.Stats}, nil
}

func (fs aferoFs) Exists(fname string) (bool, error) {
	return fs.fs.Exists(fname)
}

func (fs aferoFs) Glob(pattern string) ([]string, error) {
	names, err := afero.Glob(fs.fs, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (fs aferoFs) Delete(fname string) error {
	return fs.fs.Remove(fname)
}

func (fs aferoFs) Truncate(fname string) error {
	f, err := fs.fs.OpenFile(fname, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func (fs aferoFs) Rename(src, dst string) error {
	return fs.fs.Rename(src, dst)
}

func (fs aferoFs) AtomicCreateWith(fname string, data []byte) error {
	tmpFile := fname + ".tmp"
	if err := fs.mkParent(fname); err != nil {
		return err
	}
	if err := fs.fs.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	if f, err := fs.fs.Open(tmpFile); err == nil {
		f.Sync()
		f.Close()
	}
	return fs.fs.Rename(tmpFile, fname)
}

func (fs aferoFs) GetStats() Stats {
	return *fs.Stats
}

func deleteTmpFiles(fs afero.Fs) {
	tmpFiles, err := afero.Glob(fs, "*.tmp")
	if err != nil {
		return
	}
	for _, n := range tmpFiles {
		_ = fs.Remove(n)
	}
}

// FromAfero creates a Filesys from any afero file system.
//
// Use an afero.BasePathFs to root all database files in one directory.
// Deletes leftover *.tmp files, as file-system recovery for AtomicCreateWith.
func FromAfero(afs afero.Fs) Filesys {
	deleteTmpFiles(afs)
	return aferoFs{fs: afero.Afero{Fs: afs}, Stats: new(Stats)}
}

// MemFs creates an in-memory Filesys for tests.
func MemFs() Filesys {
	return FromAfero(afero.NewMemMapFs())
}

// DirFs creates a Filesys backed by the OS, rooted at basedir.
//
// Creates basedir if it does not exist.
func DirFs(basedir string) (Filesys, error) {
	osFs := afero.NewOsFs()
	ok, err := afero.Exists(osFs, basedir)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := osFs.MkdirAll(basedir, 0755); err != nil {
			return nil, err
		}
	}
	return FromAfero(afero.NewBasePathFs(osFs, basedir)), nil
}
