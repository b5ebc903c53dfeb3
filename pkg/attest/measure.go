package attest

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// MeasureExecutable hashes the running binary. Outside an enclave this stands in for
// MRENCLAVE so that a rebuilt binary is rejected until its measurement is allowed.
func MeasureExecutable() (Measurement, error) {
	path, err := os.Executable()
	if err != nil {
		return Measurement{}, fmt.Errorf("locate executable: %w", err)
	}
	return MeasureFile(path)
}

// MeasureFile hashes the file at path.
func MeasureFile(path string) (Measurement, error) {
	var m Measurement
	f, err := os.Open(path) // #nosec G304 -- path is the running executable or operator supplied
	if err != nil {
		return m, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return m, fmt.Errorf("hash %s: %w", path, err)
	}
	copy(m[:], h.Sum(nil))
	return m, nil
}
