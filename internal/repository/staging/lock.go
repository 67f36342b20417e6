package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/rpm-stager/internal/failure"
	"github.com/oshokin/rpm-stager/internal/logger"
)

// LockFilename marks a staging root that a run is populating.
const LockFilename = ".rpm-stager.lock"

// breakSuffix names the marker held while a stale lock is being replaced.
const breakSuffix = ".break"

// Lock is held while a run populates the tree.
type Lock struct {
	path string
}

// Lock creates the lock marker in the tree root.
// A marker left by a live process fails with KindLocked, a stale one is replaced.
func (t *Tree) Lock(ctx context.Context) (*Lock, error) {
	if err := MakeDirs(t.root); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(t.root, LockFilename)

	for attempt := 0; attempt < 2; attempt++ {
		err := createMarker(lockPath)
		if err == nil {
			return &Lock{path: lockPath}, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, failure.New(failure.KindFilesystem, "create lock", lockPath, err)
		}

		pid, alive := holder(lockPath)
		if alive {
			return nil, failure.New(failure.KindLocked, "acquire lock", lockPath,
				fmt.Errorf("held by running process %d", pid))
		}

		if err = breakStale(ctx, lockPath); err != nil {
			return nil, err
		}
	}

	return nil, failure.New(failure.KindLocked, "acquire lock", lockPath, errors.New("lock keeps reappearing"))
}

// breakStale removes a stale lock marker while holding the break marker.
// Only the break marker holder removes locks, so a lock still stale under it
// is the one seen before and not a fresh one created in between.
func breakStale(ctx context.Context, lockPath string) error {
	breakPath := lockPath + breakSuffix

	err := createMarker(breakPath)
	if errors.Is(err, fs.ErrExist) {
		return failure.New(failure.KindLocked, "replace stale lock", breakPath,
			errors.New("another process is replacing the lock, remove this marker if none is running"))
	}

	if err != nil {
		return failure.New(failure.KindFilesystem, "create lock", breakPath, err)
	}

	defer func() {
		_ = os.Remove(breakPath)
	}()

	// Gone already: a lock created from now on belongs to a live run.
	if _, err = os.Stat(lockPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	pid, alive := holder(lockPath)
	if alive {
		return failure.New(failure.KindLocked, "acquire lock", lockPath,
			fmt.Errorf("held by running process %d", pid))
	}

	logger.WarnKV(ctx, "Removing stale staging lock", "path", lockPath, "pid", pid)

	if err = os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return failure.New(failure.KindFilesystem, "remove stale lock", lockPath, err)
	}

	return nil
}

// createMarker creates path holding the current PID. The content is written to a
// temporary file first and linked into place, so a marker is never seen empty.
// It fails with an error matching fs.ErrExist when path is already there.
func createMarker(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	defer func() {
		_ = os.Remove(tmpPath)
	}()

	_, err = tmp.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	return os.Link(tmpPath, path)
}

// Release removes the lock marker. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	lockPath := l.path
	l.path = ""

	if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return failure.New(failure.KindFilesystem, "release lock", lockPath, err)
	}

	return nil
}

// holder reads the PID stored in the marker and reports whether that process still runs.
// An unreadable marker counts as stale. The current process always counts as alive.
func holder(lockPath string) (int, bool) {
	contents, err := os.ReadFile(filepath.Clean(lockPath))
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return pid, false
	}

	if pid == os.Getpid() {
		return pid, true
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	return pid, true
}
