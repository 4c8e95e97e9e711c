package output

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
)

// FileStorage stores a named file from r.
type FileStorage interface {
	Store(ctx context.Context, name string, r io.Reader) error
}

// LocalStorage writes to the local filesystem, creating parent directories.
type LocalStorage struct{}

func (LocalStorage) Store(_ context.Context, name string, r io.Reader) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	return errors.Wrapf(f.Close(), "close %s", name)
}

// FTPStorage uploads to an FTP server.
type FTPStorage struct {
	Addr        string // host:port
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPStorage) connect(ctx context.Context) (*ftp.ServerConn, error) {
	timeout := fs.ConnTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c, err := ftp.Dial(fs.Addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "ftp dial %s", fs.Addr)
	}
	if err := c.Login(fs.User, fs.Password); err != nil {
		_ = c.Quit()
		return nil, errors.Wrap(err, "ftp login")
	}
	return c, nil
}

func (fs *FTPStorage) Store(ctx context.Context, name string, r io.Reader) error {
	c, err := fs.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Quit() //nolint:errcheck

	return errors.Wrapf(c.Stor(name, r), "ftp stor %s", name)
}
