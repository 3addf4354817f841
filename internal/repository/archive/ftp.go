package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/jlaffaye/ftp"

	"github.com/SebastienElet/libxl-fetch/internal/config"
	"github.com/SebastienElet/libxl-fetch/internal/logger"
)

// Repository lists and retrieves published archives from a remote host.
type Repository interface {
	// List returns the names visible in the remote release directory.
	List(ctx context.Context) ([]string, error)
	// Fetch opens a byte stream for one remote file. The caller owns the
	// stream and must close it; a late error reported by Close after the
	// stream has been fully consumed does not invalidate the transfer.
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
	// Close releases the connection.
	Close() error
}

// FTPRepository implements Repository over a plain FTP connection.
type FTPRepository struct {
	// conn is the live control connection.
	conn *ftp.ServerConn
	// remoteDir is the directory holding the archives, "" for the login dir.
	remoteDir string
}

// Dial connects and logs in to the FTP server described by the configuration.
func Dial(ctx context.Context, cfg *config.Config) (*FTPRepository, error) {
	address := cfg.ServerAddress()
	logger.InfoKV(ctx, "Connecting to release host", "address", address)

	conn, err := ftp.Dial(address,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}

	if err = conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()

		return nil, fmt.Errorf("login as %s: %w", cfg.User, err)
	}

	if cfg.RemoteDir != "" {
		if err = conn.ChangeDir(cfg.RemoteDir); err != nil {
			_ = conn.Quit()

			return nil, fmt.Errorf("change directory to %s: %w", cfg.RemoteDir, err)
		}
	}

	return &FTPRepository{
		conn:      conn,
		remoteDir: cfg.RemoteDir,
	}, nil
}

// List returns the raw names in the release directory.
func (r *FTPRepository) List(_ context.Context) ([]string, error) {
	names, err := r.conn.NameList("")
	if err != nil {
		return nil, fmt.Errorf("list remote directory: %w", err)
	}

	return names, nil
}

// Fetch opens the data stream for a single remote file.
func (r *FTPRepository) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	response, err := r.conn.Retr(name)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", name, err)
	}

	return response, nil
}

// Close ends the FTP session.
func (r *FTPRepository) Close() error {
	return r.conn.Quit()
}
