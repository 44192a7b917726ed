package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// ComputeScriptHash computes the BLAKE3 hash of a script file.
func ComputeScriptHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyScriptHash verifies a script file against an expected BLAKE3 hash.
func VerifyScriptHash(path, expectedHash string) error {
	actualHash, err := ComputeScriptHash(path)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(path), expectedHash, actualHash)
	}
	return nil
}
