// ftp.go: archive target pushing over FTP.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

const (
	defaultFTPPort    = 21
	defaultFTPTimeout = 30 * time.Second
	defaultRemotePath = "archives"
)

// FTPTarget stores archives on an FTP server.
type FTPTarget struct {
	host     string
	port     int
	username string
	password string
	basePath string
	timeout  time.Duration
}

// NewFTPTarget creates an FTP target from the configured settings.
func NewFTPTarget(cfg *conf.ArchiveTargetSettings) (*FTPTarget, error) {
	if cfg.Host == "" {
		return nil, errors.Newf("ftp: host is required").
			Component("archive").
			Category(errors.CategoryValidation).
			Context("operation", "archive-target-init").
			Build()
	}

	target := &FTPTarget{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		basePath: strings.TrimRight(cfg.Path, "/"),
		timeout:  defaultFTPTimeout,
	}
	if target.port == 0 {
		target.port = defaultFTPPort
	}
	if target.basePath == "" {
		target.basePath = defaultRemotePath
	}
	return target, nil
}

// Name returns the name of this target.
func (t *FTPTarget) Name() string {
	return "ftp"
}

// connect establishes a connection to the FTP server with context support.
func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	connChan := make(chan *ftp.ServerConn, 1)
	errChan := make(chan error, 1)

	go func() {
		addr := fmt.Sprintf("%s:%d", t.host, t.port)
		conn, err := ftp.Dial(addr, ftp.DialWithTimeout(t.timeout))
		if err != nil {
			errChan <- fmt.Errorf("ftp: connection failed: %w", err)
			return
		}

		if t.username != "" {
			if err := conn.Login(t.username, t.password); err != nil {
				if quitErr := conn.Quit(); quitErr != nil {
					logger.Warn("Failed to quit FTP connection after login error", "error", quitErr)
				}
				errChan <- fmt.Errorf("ftp: login failed: %w", err)
				return
			}
		}

		connChan <- conn
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errChan:
		return nil, err
	case conn := <-connChan:
		return conn, nil
	}
}

// Store uploads the archive. The upload is atomic on servers that support
// rename: data goes to a temporary remote name first.
func (t *FTPTarget) Store(ctx context.Context, name string, reader io.Reader) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-ftp-store").
			Context("host", t.host).
			Build()
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			logger.Warn("Failed to close FTP connection", "error", err)
		}
	}()

	// Best effort: the directory may already exist.
	_ = conn.MakeDir(t.basePath)

	tempName := path.Join(t.basePath, fmt.Sprintf("tmp-%d-%d", time.Now().UnixNano(), os.Getpid()))
	if err := conn.Stor(tempName, reader); err != nil {
		_ = conn.Delete(tempName)
		return errors.New(fmt.Errorf("ftp: upload failed: %w", err)).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-ftp-store").
			Context("host", t.host).
			Build()
	}

	remotePath := path.Join(t.basePath, name)
	if err := conn.Rename(tempName, remotePath); err != nil {
		_ = conn.Delete(tempName)
		return errors.New(fmt.Errorf("ftp: rename failed: %w", err)).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-ftp-store").
			Context("host", t.host).
			Build()
	}

	return nil
}
