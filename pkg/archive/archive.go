package archive

import (
	"archive/zip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// EnvFileName is the metadata entry synthesized into every package. It is
// written after all directory content so a same-named source file cannot
// shadow it.
const EnvFileName = "env_config.json"

// remoteEnvironmentKey marks the package as destined for the remote
// execution environment inside the env snapshot.
const remoteEnvironmentKey = "REMOTE_ENVIRONMENT"

// PackagingError reports a failure while assembling a deploy package.
type PackagingError struct {
	Path string // source or archive path involved
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging %s: %v", e.Path, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Builder assembles deployable zip packages. Every Build re-reads the
// filesystem and the environment, so the package always reflects state at
// deploy time; nothing is cached between calls.
type Builder struct {
	// Environ supplies the environment snapshot embedded in the package.
	// Defaults to os.Environ.
	Environ func() []string

	// TempDir is where the archive is staged before being read back.
	// Defaults to os.TempDir().
	TempDir string
}

// NewBuilder creates a Builder with the process environment and the
// default temp directory.
func NewBuilder() *Builder {
	return &Builder{
		Environ: os.Environ,
		TempDir: os.TempDir(),
	}
}

// Build assembles the package for handlerDir plus the given auxiliary
// directories and returns the finished archive bytes.
//
// Files under handlerDir are flattened to the archive root. Each auxiliary
// directory is added under a path segment equal to its base name with its
// internal structure preserved, in caller order. The env_config.json entry
// is written last, then the archive is sealed and read back.
func (b *Builder) Build(handlerDir string, auxDirs []string) ([]byte, error) {
	target := b.targetPath(handlerDir)

	f, err := os.Create(target)
	if err != nil {
		return nil, &PackagingError{Path: target, Err: err}
	}

	zw := zip.NewWriter(f)

	fail := func(p string, err error) ([]byte, error) {
		// Partial artifacts are non-authoritative; cleanup is best effort.
		zw.Close()
		f.Close()
		os.Remove(target)
		return nil, &PackagingError{Path: p, Err: err}
	}

	if err := addFlattened(zw, handlerDir); err != nil {
		return fail(handlerDir, err)
	}

	for _, dir := range auxDirs {
		if err := addSubtree(zw, dir, filepath.Base(dir)); err != nil {
			return fail(dir, err)
		}
	}

	if err := b.writeEnvEntry(zw); err != nil {
		return fail(EnvFileName, err)
	}

	// The archive is complete only once both the zip central directory and
	// the underlying file are flushed and closed.
	if err := zw.Close(); err != nil {
		return fail(target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return nil, &PackagingError{Path: target, Err: err}
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, &PackagingError{Path: target, Err: err}
	}
	os.Remove(target)

	return data, nil
}

// targetPath derives the staging path for handlerDir. The name is a
// deterministic encoding of the source path, so concurrent builds of
// different functions never collide while rebuilds of the same function
// reuse one slot.
func (b *Builder) targetPath(handlerDir string) string {
	enc := base64.RawURLEncoding.EncodeToString([]byte(handlerDir))
	return filepath.Join(b.TempDir, "fnship-"+enc+".zip")
}

// addFlattened adds every regular file under dir at the archive root,
// keyed by base name.
func addFlattened(zw *zip.Writer, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return addFile(zw, p, d.Name())
	})
}

// addSubtree adds every regular file under dir, preserving its internal
// structure beneath the given prefix.
func addSubtree(zw *zip.Writer, dir, prefix string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, path.Join(prefix, filepath.ToSlash(rel)))
	})
}

func addFile(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, in)
	return err
}

// writeEnvEntry serializes the environment snapshot plus the remote
// execution flag into the env_config.json entry.
func (b *Builder) writeEnvEntry(zw *zip.Writer) error {
	snapshot := make(map[string]any)
	for _, kv := range b.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		snapshot[key] = value
	}
	snapshot[remoteEnvironmentKey] = true

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	w, err := zw.Create(EnvFileName)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}
