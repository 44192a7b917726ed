package effects

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattjoyce/jqbridge/internal/protocol"
)

// The path text is used exactly as the script supplied it; no cleaning or
// jailing happens here. Relative paths resolve against the configured
// working directory, absolute paths pass through untouched.

func (r *Runner) resolve(path string) string {
	if r.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return r.dir + string(filepath.Separator) + path
}

func (r *Runner) readFile(q protocol.ReadFile) protocol.Outcome {
	data, err := os.ReadFile(r.resolve(q.Path))
	if err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	return protocol.Ok(string(data))
}

func (r *Runner) writeFile(q protocol.WriteFile) protocol.Outcome {
	flags := os.O_WRONLY | os.O_CREATE
	if q.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(r.resolve(q.Path), flags, 0o644)
	if err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	_, werr := f.WriteString(q.Content)
	cerr := f.Close()
	if werr != nil {
		return protocol.Fail(protocol.KindIo, werr.Error())
	}
	if cerr != nil {
		return protocol.Fail(protocol.KindIo, cerr.Error())
	}
	return protocol.Ok(nil)
}

func (r *Runner) readDir(q protocol.ReadDir) protocol.Outcome {
	entries, err := os.ReadDir(r.resolve(q.Path))
	if err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	// Entry paths are reported relative to the requested path so the
	// script sees them in its own frame of reference.
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(q.Path, entry.Name()))
	}
	return protocol.Ok(paths)
}

func (r *Runner) exists(q protocol.Exists) protocol.Outcome {
	_, err := os.Stat(r.resolve(q.Path))
	switch {
	case err == nil:
		return protocol.Ok(true)
	case errors.Is(err, fs.ErrNotExist):
		return protocol.Ok(false)
	default:
		return protocol.Fail(protocol.KindIo, err.Error())
	}
}

func (r *Runner) metadata(q protocol.Metadata) protocol.Outcome {
	info, err := os.Stat(r.resolve(q.Path))
	if err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	return protocol.Ok(protocol.FileMetadata{
		// Readonly means no write permission bit is set for anyone,
		// matching what a bare permission check reports.
		Readonly: info.Mode().Perm()&0o222 == 0,
		IsFile:   info.Mode().IsRegular(),
		IsDir:    info.IsDir(),
		Len:      info.Size(),
	})
}
