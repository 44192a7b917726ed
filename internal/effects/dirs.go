package effects

import (
	"os"
	"path/filepath"

	"github.com/mattjoyce/jqbridge/internal/protocol"
)

func (r *Runner) currentDir() protocol.Outcome {
	if r.dir != "" {
		abs, err := filepath.Abs(r.dir)
		if err != nil {
			return protocol.Fail(protocol.KindIo, err.Error())
		}
		return protocol.Ok(abs)
	}
	dir, err := os.Getwd()
	if err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	return protocol.Ok(dir)
}
