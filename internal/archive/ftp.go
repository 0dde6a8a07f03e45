package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

const (
	DefaultFTPHost = "ftp.ncdc.noaa.gov:21"
	DefaultFTPRoot = "/pub/data/ghcn/daily"
)

// FTPTransport downloads from the NOAA anonymous FTP server. Each retrieval
// uses its own control connection, closed together with the body.
type FTPTransport struct {
	host    string
	root    string
	timeout time.Duration
}

func NewFTPTransport(host, root string, timeout time.Duration) *FTPTransport {
	if host == "" {
		host = DefaultFTPHost
	}
	if root == "" {
		root = DefaultFTPRoot
	}
	return &FTPTransport{host: host, root: root, timeout: timeout}
}

func (t *FTPTransport) Name() string { return "ftp" }

func (t *FTPTransport) Retrieve(ctx context.Context, remoteID string) (io.ReadCloser, error) {
	conn, err := ftp.Dial(t.host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(t.timeout))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	path := joinPath(t.root, remoteID)
	size, err := conn.FileSize(path)
	if err != nil {
		// SIZE is optional on some mirrors; fall back to an unchecked transfer.
		size = -1
	}

	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp retr %s: %w", path, err)
	}

	return &body{ReadCloser: resp, size: size, close: conn.Quit}, nil
}
