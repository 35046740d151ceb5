package descriptor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/metal-toolbox/regiongen/internal/model"
)

const (
	fileMode = 0o644
)

var (
	// ErrExists is returned when the descriptor file to be written already exists.
	ErrExists = errors.New("descriptor file already exists")

	ErrWrite = errors.New("error writing descriptor")
	ErrRead  = errors.New("error reading descriptor")
)

// FileName returns the descriptor file name for a region.
func FileName(region string) string {
	return region + ".json"
}

// Sort orders the descriptor servers by zone, rack, role and identifier.
func Sort(d *model.Descriptor) {
	slices.SortStableFunc(d.Servers, compare)
}

func compare(a, b model.Server) int {
	if c := strings.Compare(a.Zone, b.Zone); c != 0 {
		return c
	}

	if c := strings.Compare(a.Rack, b.Rack); c != 0 {
		return c
	}

	if c := strings.Compare(string(a.Role), string(b.Role)); c != 0 {
		return c
	}

	return strings.Compare(a.ID, b.ID)
}

// Marshal returns the JSON encoded descriptor with its servers in sorted order,
// the given descriptor is left as is.
func Marshal(d *model.Descriptor) ([]byte, error) {
	sorted := &model.Descriptor{
		Shards:  d.Shards,
		Servers: slices.Clone(d.Servers),
	}

	if sorted.Servers == nil {
		sorted.Servers = []model.Server{}
	}

	Sort(sorted)

	return json.Marshal(sorted)
}

// WriteFile writes the descriptor to path, an existing file is never overwritten.
func WriteFile(path string, d *model.Descriptor) error {
	b, err := Marshal(d)
	if err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(ErrWrite, err.Error())
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrap(ErrExists, path)
		}

		return errors.Wrap(ErrWrite, err.Error())
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		return errors.Wrap(ErrWrite, path+": "+err.Error())
	}

	if err := f.Close(); err != nil {
		return errors.Wrap(ErrWrite, path+": "+err.Error())
	}

	return nil
}

// ReadFile reads a descriptor written by WriteFile.
func ReadFile(path string) (*model.Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrRead, err.Error())
	}

	d := &model.Descriptor{}
	if err := json.Unmarshal(b, d); err != nil {
		return nil, errors.Wrap(ErrRead, path+": "+err.Error())
	}

	return d, nil
}
