package workflow

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// errTargetExists marks a directory copy that was left alone because the
// target is already present.
var errTargetExists = errors.New("target exists")

// lstat reports on name without following a final symlink when the
// filesystem can tell the difference.
func lstat(fsys afero.Fs, name string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return fsys.Stat(name)
}

func isSymlink(fi os.FileInfo) bool {
	return fi.Mode()&fs.ModeSymlink != 0
}

// copyDir copies the tree at src to dst unless dst already exists.
func copyDir(fsys afero.Fs, src, dst string) error {
	if ok, err := afero.Exists(fsys, dst); err != nil {
		return err
	} else if ok {
		return errTargetExists
	}
	return copyTree(fsys, src, dst)
}

// copyTree copies src into dst, creating dst as needed. Symlinks are
// skipped and existing files are replaced.
func copyTree(fsys afero.Fs, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	if err := fsys.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return err
	}
	entries, err := afero.ReadDir(fsys, src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		fi, err := lstat(fsys, s)
		if err != nil {
			return err
		}
		switch {
		case isSymlink(fi):
		case fi.IsDir():
			if err := copyTree(fsys, s, d); err != nil {
				return err
			}
		default:
			if err := copyFile(fsys, s, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyFiles copies every entry of src into the existing directory dst.
// Files overwrite, sub-directories are copied as trees unless present
// and symlinks are skipped.
func copyFiles(fsys afero.Fs, src, dst string) error {
	if ok, err := afero.DirExists(fsys, dst); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("target directory %s does not exist", dst)
	}
	entries, err := afero.ReadDir(fsys, src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		fi, err := lstat(fsys, s)
		if err != nil {
			return err
		}
		switch {
		case isSymlink(fi):
		case fi.IsDir():
			if err := copyDir(fsys, s, d); err != nil && !errors.Is(err, errTargetExists) {
				return err
			}
		default:
			if err := copyFile(fsys, s, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyFile replaces dst with a copy of src, keeping the mode and
// modification time.
func copyFile(fsys afero.Fs, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}
	if err := fsys.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	// Closing may touch the modification time, so times are set after.
	if err := out.Close(); err != nil {
		return err
	}
	if err := fsys.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return fsys.Chtimes(dst, info.ModTime(), info.ModTime())
}
