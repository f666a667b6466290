package zerocopy

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// HeaderMargin is the extra header space added on top of the
// configured buffer parts' total size when sizing the shared region,
// §4.5 "shm-size ... plus a small header margin".
const HeaderMargin = 4

// RegionConfig is the finalized {shm-key, shm-size} pair a
// ZeroCopyGroup exposes to peers via GetConfig, §4.5.
type RegionConfig struct {
	SysVKey  uint32
	RegionSZ uint32
}

// Region is a SysV shared-memory segment. Grounded literally on
// ZeroCopyGroup::on_establish/on_shutdown (multipoint_zc.cc): created
// with IPC_CREAT|IPC_EXCL so a key collision is a real, observable
// failure rather than silently attaching to someone else's segment, and
// removed with IPC_RMID on shutdown.
type Region struct {
	cfg   RegionConfig
	shmID int

	attached []byte
}

// CreateRegion allocates a new shared-memory segment for the given
// config, failing if the key is already in use.
func CreateRegion(cfg RegionConfig) (*Region, error) {
	id, err := unix.SysvShmGet(int(cfg.SysVKey), int(cfg.RegionSZ), unix.IPC_CREAT|unix.IPC_EXCL|0666)
	if err != nil {
		return nil, errors.Wrapf(err, "shmget key=%#x size=%d", cfg.SysVKey, cfg.RegionSZ)
	}
	return &Region{cfg: cfg, shmID: id}, nil
}

// OpenRegion attaches to a region created elsewhere (by a
// ZeroCopyGroup's on_establish), identified by the same {shm-key,
// shm-size} pair the group published via GetConfig. Used by the
// zero-copy Gateway, which is a consumer of the region, not its owner.
func OpenRegion(cfg RegionConfig) (*Region, error) {
	id, err := unix.SysvShmGet(int(cfg.SysVKey), int(cfg.RegionSZ), 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "shmget (open) key=%#x size=%d", cfg.SysVKey, cfg.RegionSZ)
	}
	return &Region{cfg: cfg, shmID: id}, nil
}

// Config returns the region's {shm-key, shm-size} pair.
func (r *Region) Config() RegionConfig { return r.cfg }

// Attach maps the region into this process's address space, returning
// the backing slice the gateway reads/writes frame bytes through. The
// §6.3 "opaque pointer+length pairs" the Connection hot path passes
// around are simply sub-slices of this buffer.
func (r *Region) Attach() ([]byte, error) {
	if r.attached != nil {
		return r.attached, nil
	}
	data, err := unix.SysvShmAttach(r.shmID, 0, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "shmat id=%d", r.shmID)
	}
	r.attached = data
	return data, nil
}

// Detach unmaps a previously attached region. A no-op if never attached.
func (r *Region) Detach() error {
	if r.attached == nil {
		return nil
	}
	if err := unix.SysvShmDetach(r.attached); err != nil {
		return errors.Wrapf(err, "shmdt id=%d", r.shmID)
	}
	r.attached = nil
	return nil
}

// Close removes the shared-memory segment (IPC_RMID). Idempotent best
// effort: a second Close on an already-removed segment returns the
// underlying OS error rather than panicking.
func (r *Region) Close() error {
	_, err := unix.SysvShmCtl(r.shmID, unix.IPC_RMID, nil)
	if err != nil {
		return errors.Wrapf(err, "shmctl IPC_RMID id=%d", r.shmID)
	}
	return nil
}
