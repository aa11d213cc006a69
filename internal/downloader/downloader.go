// Package downloader fetches authorized media URLs to local files.
package downloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrExists is returned when the destination file is already present.
var ErrExists = errors.New("destination already exists")

// Progress is reported after every chunk written. Total is zero when the
// length is unknown.
type Progress struct {
	Bytes int64
	Total int64
}

// ProgressFunc receives progress updates. A nil ProgressFunc is ignored.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(bytes, total int64) {
	if f != nil {
		f(Progress{Bytes: bytes, Total: total})
	}
}

// PartPath returns a fresh hidden partial file path next to dest. The
// extension of dest is kept so container-sniffing tools see the right format.
func PartPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+uuid.NewString()+".part"+filepath.Ext(dest))
}

// Place moves the finished partial file to dest without ever replacing an
// existing file. The partial file is removed in every case.
func Place(part, dest string) error {
	defer os.Remove(part)
	if err := os.Link(part, dest); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, dest)
		}
		return err
	}
	return nil
}

// CheckAbsent fails with ErrExists when dest is already present.
func CheckAbsent(dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
