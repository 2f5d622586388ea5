package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"passfs/internal/fs"
	"passfs/internal/logging"

	"bazil.org/fuse"
)

// Options controls how the filesystem is mounted.
type Options struct {
	MountPoint string
	FSName     string
	Subtype    string
	// AllowOther lets users other than the mounting one access the mount.
	AllowOther bool
	// ReadOnly additionally asks the kernel to mount read-only.
	ReadOnly bool
}

func (o Options) mountOptions() []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName(o.FSName),
		fuse.Subtype(o.Subtype),
	}
	if o.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	if o.ReadOnly {
		opts = append(opts, fuse.ReadOnly())
	}
	return opts
}

// waitForMount polls the mount point until it answers, which requires the
// server to be dispatching requests.
func waitForMount(ctx context.Context, mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts fsys at opts.MountPoint and serves it until the filesystem
// is unmounted or ctx is cancelled, in which case it unmounts first.
func Mount(ctx context.Context, fsys fs.FileSystem, opts Options) error {
	logger.Info("Mounting filesystem")
	logger.Debug("Mount point: %s", opts.MountPoint)
	logger.Debug("Mounting with options: %+v", opts)

	if logging.GetLogger().Level() >= logging.LevelTrace {
		fuse.Debug = func(msg interface{}) {
			logger.Trace("%v", msg)
		}
	}

	c, err := fuse.Mount(opts.MountPoint, opts.mountOptions()...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	defer c.Close()

	served := make(chan error, 1)
	go func() {
		served <- New(fsys).Serve(ctx, c)
	}()

	if err := waitForMount(ctx, opts.MountPoint); err != nil {
		logger.Warn("Mount point not ready: %v", err)
	} else {
		logger.Info("Filesystem mounted at %s", opts.MountPoint)
	}

	select {
	case err := <-served:
		logger.Info("Filesystem at %s was unmounted", opts.MountPoint)
		return err
	case <-ctx.Done():
	}

	if err := Unmount(opts.MountPoint); err != nil {
		return err
	}
	return <-served
}

// Unmount detaches the filesystem at mountPoint.
func Unmount(mountPoint string) error {
	logger.Info("Unmounting filesystem from: %s", mountPoint)
	if err := fuse.Unmount(mountPoint); err != nil {
		logger.Error("Unmount failed: %v", err)
		return fmt.Errorf("unmount %s: %w", mountPoint, err)
	}
	logger.Info("Unmount completed successfully")
	return nil
}
