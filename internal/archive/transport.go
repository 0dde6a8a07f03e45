package archive

import (
	"context"
	"io"
	"strings"
)

// Remote resource identifiers, relative to the GHCN-Daily root.
const (
	StationsFile  = "ghcnd-stations.txt"
	InventoryFile = "ghcnd-inventory.txt"
	byStationDir  = "by_station/"
)

// StationArchive returns the identifier of a station's gzip-compressed
// observation file.
func StationArchive(stationID string) string {
	return byStationDir + stationID + ".csv.gz"
}

// Transport retrieves a named resource from the remote archive.
type Transport interface {
	Name() string
	Retrieve(ctx context.Context, remoteID string) (io.ReadCloser, error)
}

// sizedBody is implemented by transport bodies that know how many bytes the
// server promised, so truncated transfers can be rejected.
type sizedBody interface {
	ExpectedSize() int64
}

type body struct {
	io.ReadCloser
	size  int64
	close func() error
}

func (b *body) ExpectedSize() int64 { return b.size }

func (b *body) Close() error {
	err := b.ReadCloser.Close()
	if b.close != nil {
		if cerr := b.close(); err == nil {
			err = cerr
		}
	}
	return err
}

func joinPath(base, rel string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}
