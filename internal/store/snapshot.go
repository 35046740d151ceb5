package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/metal-toolbox/regiongen/internal/model"
)

const (
	inventoryDir = "inventory"
	tagLayout    = "2006-01-02T15:04:05"

	// partialSuffix marks a snapshot being written.
	partialSuffix = ".partial"

	dirMode  = 0o755
	fileMode = 0o644
)

var (
	// ErrNoSnapshot is returned when a region has no stored snapshots.
	ErrNoSnapshot = errors.New("no inventory snapshot found")

	// ErrSnapshotIncomplete is returned when a snapshot is missing device data for a zone.
	ErrSnapshotIncomplete = errors.New("inventory snapshot incomplete")

	ErrSnapshotWrite = errors.New("error writing inventory snapshot")
	ErrSnapshotRead  = errors.New("error reading inventory snapshot")
)

var _ Storage = (*Snapshots)(nil)

// Snapshots stores inventory snapshots as JSON files under a data directory,
//
//	<root>/inventory/<region>/<tag>/devices-<building>.json
//	<root>/inventory/<region>/<tag>/nodes-<zone>.json
//
// A zone without fleet data has no nodes file.
type Snapshots struct {
	root   string
	logger *logrus.Logger
	now    func() time.Time
	pid    int
}

// NewSnapshotStore returns a Snapshots store rooted at dataDir.
func NewSnapshotStore(dataDir string, logger *logrus.Logger) *Snapshots {
	if logger == nil {
		logger = logrus.New()
	}

	return &Snapshots{
		root:   dataDir,
		logger: logger,
		now:    time.Now,
		pid:    os.Getpid(),
	}
}

// RegionDir returns the directory holding the snapshots of a region.
func (s *Snapshots) RegionDir(region string) string {
	return filepath.Join(s.root, inventoryDir, region)
}

// Dir returns the directory of a snapshot.
func (s *Snapshots) Dir(region, tag string) string {
	return filepath.Join(s.RegionDir(region), tag)
}

func (s *Snapshots) newTag() string {
	return s.now().UTC().Format(tagLayout) + "." + strconv.Itoa(s.pid)
}

func devicesFile(building string) string {
	return "devices-" + building + ".json"
}

func nodesFile(zone string) string {
	return "nodes-" + zone + ".json"
}

// Save writes the inventory into a new snapshot directory.
//
// Files are written to a staging directory which is renamed into place once complete,
// an interrupted Save leaves no snapshot behind for Latest to pick up.
func (s *Snapshots) Save(ctx context.Context, region *model.Region, inventory *model.Inventory) (string, error) {
	tag := s.newTag()
	dir := s.Dir(region.Name, tag)
	staging := dir + partialSuffix

	if err := os.MkdirAll(s.RegionDir(region.Name), dirMode); err != nil {
		return "", errors.Wrap(ErrSnapshotWrite, err.Error())
	}

	if err := os.Mkdir(staging, dirMode); err != nil {
		return "", errors.Wrap(ErrSnapshotWrite, err.Error())
	}

	committed := false

	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	for _, zone := range region.Zones {
		if ctx.Err() != nil {
			return "", errors.Wrap(ErrSnapshotWrite, ctx.Err().Error())
		}

		devices, exists := inventory.Devices[zone.Name]
		if !exists {
			return "", errors.Wrap(ErrSnapshotIncomplete, fmt.Sprintf("no device data for zone %q", zone.Name))
		}

		if err := writeJSON(filepath.Join(staging, devicesFile(zone.Building)), devices); err != nil {
			return "", err
		}

		if !inventory.HasNodes(zone.Name) {
			continue
		}

		if err := writeJSON(filepath.Join(staging, nodesFile(zone.Name)), inventory.Nodes[zone.Name]); err != nil {
			return "", err
		}
	}

	if err := os.Rename(staging, dir); err != nil {
		return "", errors.Wrap(ErrSnapshotWrite, err.Error())
	}

	committed = true

	s.logger.WithFields(logrus.Fields{
		"region": region.Name,
		"tag":    tag,
		"dir":    dir,
	}).Info("inventory snapshot saved")

	return tag, nil
}

// Latest returns the most recent complete snapshot tag for the region.
func (s *Snapshots) Latest(_ context.Context, region string) (string, error) {
	entries, err := os.ReadDir(s.RegionDir(region))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(ErrNoSnapshot, "region "+region)
		}

		return "", errors.Wrap(ErrSnapshotRead, err.Error())
	}

	tags := []string{}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), partialSuffix) {
			continue
		}

		tags = append(tags, entry.Name())
	}

	if len(tags) == 0 {
		return "", errors.Wrap(ErrNoSnapshot, "region "+region)
	}

	slices.Sort(tags)

	return tags[len(tags)-1], nil
}

// Load reads a snapshot, device data must be present for every zone in region.
func (s *Snapshots) Load(_ context.Context, region *model.Region, tag string) (*model.Inventory, error) {
	return LoadDir(s.Dir(region.Name, tag), region)
}

// LoadDir reads the snapshot stored in dir.
func LoadDir(dir string, region *model.Region) (*model.Inventory, error) {
	inv := model.NewInventory()

	for _, zone := range region.Zones {
		devices := []model.Device{}

		err := readJSON(filepath.Join(dir, devicesFile(zone.Building)), &devices)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrap(ErrSnapshotIncomplete, fmt.Sprintf("%s: no device data for building %q", dir, zone.Building))
			}

			return nil, err
		}

		inv.Devices[zone.Name] = devices

		nodes := []model.Node{}

		err = readJSON(filepath.Join(dir, nodesFile(zone.Name)), &nodes)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, err
		}

		inv.Nodes[zone.Name] = nodes
	}

	return inv, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(ErrSnapshotWrite, err.Error())
	}

	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrap(ErrSnapshotWrite, err.Error())
	}

	return nil
}

// readJSON decodes the file at path, a missing file is returned as the os error unwrapped.
func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}

		return errors.Wrap(ErrSnapshotRead, err.Error())
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(ErrSnapshotRead, path+": "+err.Error())
	}

	return nil
}
