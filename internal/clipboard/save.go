package clipboard

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
)

// fileName returns Screenshot_<stamp>.png for n == 0, Screenshot_<stamp>_<n>.png otherwise.
func fileName(t time.Time, n int) string {
	name := FilePrefix + t.Format(TimestampLayout)
	if n > 0 {
		name += "_" + strconv.Itoa(n)
	}
	return name + FileExt
}

// saveUnique writes data under the first free timestamped name in dir.
// Names are claimed with O_EXCL so an existing file is never overwritten,
// even by a concurrent writer.
func saveUnique(dir string, t time.Time, data []byte) (string, error) {
	for n := 0; n < MaxNameAttempts; n++ {
		path := filepath.Join(dir, fileName(t, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeSaveFailed, "create screenshot file").
				WithMetadata("path", path)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", apperrors.Wrap(err, apperrors.CodeSaveFailed, "write screenshot").
				WithMetadata("path", path)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", apperrors.Wrap(err, apperrors.CodeSaveFailed, "close screenshot").
				WithMetadata("path", path)
		}
		return path, nil
	}
	return "", apperrors.Newf(apperrors.CodeSaveFailed, "no free name after %d attempts", MaxNameAttempts).
		WithMetadata("stamp", t.Format(TimestampLayout))
}
