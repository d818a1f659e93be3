package vectorstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/edgeflare/ragapi/pkg/config"
	"go.uber.org/zap"
)

// RuntimePath returns where the chromem store is opened: the configured path, or that path
// nested under the temp directory when running from a read-only image.
func RuntimePath(sc config.StoreConfig) string {
	if !sc.ImageRuntime {
		return sc.Path
	}
	return filepath.Join(sc.TmpDir, sc.Path)
}

// PrepareRuntimeCopy copies the bundled store at src into dst unless dst already has
// contents, so a warm container keeps what it wrote.
func PrepareRuntimeCopy(src, dst string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	entries, err := os.ReadDir(dst)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dst, err)
	}
	if len(entries) > 0 {
		logger.Info("runtime store already exists", zap.String("path", dst))
		return nil
	}

	logger.Info("copying bundled store", zap.String("from", src), zap.String("to", dst))
	if err := copyDir(src, dst); err != nil {
		return fmt.Errorf("failed to copy store to %s: %w", dst, err)
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return errors.New("unsupported file type: " + path)
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
