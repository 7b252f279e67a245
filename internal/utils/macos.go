package utils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// IsRoot reports an effective uid of 0
func IsRoot() bool {
	return os.Geteuid() == 0
}

// IsWritable reports whether the current process may write to path
func IsWritable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

// Cp copies a file from src to dst keeping its permission bits
func Cp(src, dst string) error {
	from, err := os.Open(src)
	if err != nil {
		return err
	}
	defer from.Close()

	fi, err := from.Stat()
	if err != nil {
		return err
	}

	to, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer to.Close()

	if _, err = io.Copy(to, from); err != nil {
		return err
	}
	return os.Chmod(dst, fi.Mode().Perm())
}

// CopyTree copies src (file, directory or symlink) to dst, merging into any
// existing directory
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
			return os.Symlink(link, target)
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return Cp(path, target)
		default:
			return fmt.Errorf("unsupported file type %s: %s", info.Mode().Type(), path)
		}
	})
}

// Touch updates the modification time of path to now
func Touch(path string) error {
	now := time.Now()
	return os.Chtimes(path, now, now)
}
