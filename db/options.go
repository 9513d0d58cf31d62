package db

import (
	"bytes"
	"io"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/niuchangsheng/kv/metrics"
	"github.com/niuchangsheng/kv/status"
)

const defaultWriteBufferSize = 4 * 1024 * 1024

// Options controls how a database is opened and run.
type Options struct {
	// CreateIfMissing creates the database directory and a fresh log on
	// Open when the directory is absent.
	CreateIfMissing bool `yaml:"create_if_missing"`
	// ErrorIfExists fails Open when the directory already exists.
	ErrorIfExists bool `yaml:"error_if_exists"`
	// ParanoidChecks is reserved for extra CRC and bounds checking.
	ParanoidChecks bool `yaml:"paranoid_checks"`
	// WriteBufferSize is the live memtable seal threshold in bytes
	// (default 4 MiB).
	WriteBufferSize int `yaml:"write_buffer_size"`

	// InfoLog receives engine events. Defaults to a no-op logger.
	InfoLog *zap.Logger `yaml:"-"`
	// Metrics receives engine instrumentation; nil disables collection.
	Metrics *metrics.Registry `yaml:"-"`
	// FS is the base filesystem holding the database directory. Defaults
	// to the operating system.
	FS afero.Fs `yaml:"-"`
}

// DefaultOptions returns the defaults from the options table.
func DefaultOptions() *Options {
	return &Options{WriteBufferSize: defaultWriteBufferSize}
}

// withDefaults fills zero values so the engine never re-checks them.
func (o *Options) withDefaults() *Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.WriteBufferSize <= 0 {
		opts.WriteBufferSize = defaultWriteBufferSize
	}
	if opts.InfoLog == nil {
		opts.InfoLog = zap.NewNop()
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	return &opts
}

// LoadOptions reads an Options YAML file. Unknown keys are rejected.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, status.IOError("read options file "+path, err)
	}
	opts := DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && err != io.EOF {
		return nil, status.InvalidArgument("parse options file: " + err.Error())
	}
	return opts, nil
}

// ReadOptions controls read operations.
type ReadOptions struct {
	// VerifyChecksums is reserved; block checksums are always verified.
	VerifyChecksums bool
	// FillCache is reserved for a block cache.
	FillCache bool
}

// WriteOptions controls write operations.
type WriteOptions struct {
	// Sync forces the log to stable storage before the write returns.
	Sync bool
}
