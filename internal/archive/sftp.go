// sftp.go: archive target pushing over SFTP.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

const (
	defaultSFTPPort    = 22
	defaultSFTPTimeout = 30 * time.Second
)

// SFTPTarget stores archives on an SFTP server.
type SFTPTarget struct {
	host     string
	port     int
	username string
	password string
	keyFile  string
	basePath string
	timeout  time.Duration
}

// NewSFTPTarget creates an SFTP target from the configured settings.
func NewSFTPTarget(cfg *conf.ArchiveTargetSettings) (*SFTPTarget, error) {
	if cfg.Host == "" {
		return nil, errors.Newf("sftp: host is required").
			Component("archive").
			Category(errors.CategoryValidation).
			Context("operation", "archive-target-init").
			Build()
	}

	target := &SFTPTarget{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		keyFile:  cfg.KeyFile,
		basePath: strings.TrimRight(cfg.Path, "/"),
		timeout:  defaultSFTPTimeout,
	}
	if target.port == 0 {
		target.port = defaultSFTPPort
	}
	if target.basePath == "" {
		target.basePath = defaultRemotePath
	}
	return target, nil
}

// Name returns the name of this target.
func (t *SFTPTarget) Name() string {
	return "sftp"
}

// connect establishes an SFTP connection.
func (t *SFTPTarget) connect(ctx context.Context) (*sftp.Client, error) {
	type connResult struct {
		client *sftp.Client
		err    error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		config := &ssh.ClientConfig{
			User:            t.username,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Note: In production, use ssh.FixedHostKey() or ssh.KnownHosts()
			Timeout:         t.timeout,
		}

		switch {
		case t.keyFile != "":
			key, err := os.ReadFile(t.keyFile)
			if err != nil {
				resultChan <- connResult{nil, fmt.Errorf("sftp: failed to read private key: %w", err)}
				return
			}
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				resultChan <- connResult{nil, fmt.Errorf("sftp: failed to parse private key: %w", err)}
				return
			}
			config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
		case t.password != "":
			config.Auth = []ssh.AuthMethod{ssh.Password(t.password)}
		default:
			resultChan <- connResult{nil, fmt.Errorf("sftp: no authentication method provided")}
			return
		}

		addr := fmt.Sprintf("%s:%d", t.host, t.port)
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to connect: %w", err)}
			return
		}

		client, err := sftp.NewClient(sshConn)
		if err != nil {
			sshConn.Close()
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to create client: %w", err)}
			return
		}

		resultChan <- connResult{client, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.client, result.err
	}
}

// Store uploads the archive into the base path.
func (t *SFTPTarget) Store(ctx context.Context, name string, reader io.Reader) error {
	client, err := t.connect(ctx)
	if err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-sftp-store").
			Context("host", t.host).
			Build()
	}
	defer client.Close()

	if err := client.MkdirAll(t.basePath); err != nil {
		return errors.New(fmt.Errorf("sftp: failed to create directory %s: %w", t.basePath, err)).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-sftp-store").
			Context("host", t.host).
			Build()
	}

	remotePath := path.Join(t.basePath, name)
	dstFile, err := client.Create(remotePath)
	if err != nil {
		return errors.New(fmt.Errorf("sftp: failed to create file: %w", err)).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-sftp-store").
			Context("host", t.host).
			Build()
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, reader); err != nil {
		return errors.New(fmt.Errorf("sftp: failed to write file: %w", err)).
			Component("archive").
			Category(errors.CategoryNetwork).
			Context("operation", "archive-sftp-store").
			Context("host", t.host).
			Build()
	}

	return nil
}
