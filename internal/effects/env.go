package effects

import (
	"os"

	"github.com/mattjoyce/jqbridge/internal/protocol"
)

// Environment mutations apply to the bridge process itself, so they are
// visible to subsequently spawned subprocesses but never retroactively.

func envGet(q protocol.EnvGet) protocol.Outcome {
	value, ok := os.LookupEnv(q.Name)
	if !ok {
		return protocol.Ok(nil)
	}
	return protocol.Ok(value)
}

func envSet(q protocol.EnvSet) protocol.Outcome {
	// Only degenerate names (empty, embedded '=' or NUL) can fail here.
	if err := os.Setenv(q.Name, q.Value); err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	return protocol.Ok(nil)
}

func envRemove(q protocol.EnvRemove) protocol.Outcome {
	if err := os.Unsetenv(q.Name); err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	return protocol.Ok(nil)
}
