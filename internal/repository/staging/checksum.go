package staging

import (
	"crypto"
	"io"
	"os"
	"path/filepath"

	// Register SHA-512 for crypto.SHA512.New.
	_ "crypto/sha512"

	"github.com/oshokin/rpm-stager/internal/failure"
)

// ChecksumFunction is used to compare static files with their staged copies.
const ChecksumFunction = crypto.SHA512

// Checksum returns the ChecksumFunction digest of the file at path.
func Checksum(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, classify("open", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return nil, failure.New(failure.KindFilesystem, "read", path, err)
	}

	return hasher.Sum(nil), nil
}
