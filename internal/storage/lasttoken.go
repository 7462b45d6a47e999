package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/yndnr/meshnode-go/internal/core/domain"
)

// LastTokenFile is the file name used by LastTokenRecord.
const LastTokenFile = "token.txt"

// LastTokenRecord is a single flat file holding the most recent token
// delivered by the daemon through JoinComplete, independent of identity.
type LastTokenRecord struct {
	dir string
}

// NewLastTokenRecord returns a record stored in dir/token.txt.
func NewLastTokenRecord(dir string) *LastTokenRecord {
	return &LastTokenRecord{dir: dir}
}

// Path returns the record file path.
func (r *LastTokenRecord) Path() string {
	return filepath.Join(r.dir, LastTokenFile)
}

// Write replaces the record with token.
func (r *LastTokenRecord) Write(token domain.AuthToken) error {
	if err := os.MkdirAll(r.dir, dirPerm); err != nil {
		return domain.ErrStorageError.WithDetails("create " + r.dir).WithCause(err)
	}
	if err := atomicwriter.WriteFile(r.Path(), []byte(token.String()), filePerm); err != nil {
		return domain.ErrStorageError.WithDetails("write " + r.Path()).WithCause(err)
	}
	return nil
}

// Read returns the recorded token, or domain.NoToken if none was written.
func (r *LastTokenRecord) Read() (domain.AuthToken, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NoToken, nil
		}
		return domain.NoToken, domain.ErrStorageError.WithDetails("read " + r.Path()).WithCause(err)
	}
	return domain.ParseAuthToken(string(data))
}
