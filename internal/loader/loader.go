package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/sandbox"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Options configures Load
type Options struct {
	// Platform selects platform specific files, defaulting to the host's
	Platform types.Platform
	Limits   types.Limits
	Logger   *zap.Logger
	// StateOptions are applied to every State after the loader's own
	StateOptions []sandbox.Option
}

// Loaded is a remote ready to be handed to a worker
type Loaded struct {
	Remote types.Remote
	State  *sandbox.State
}

func (o *Options) defaults() {
	if o.Platform == "" {
		o.Platform = types.CurrentPlatform()
	}
	if o.Limits == (types.Limits{}) {
		o.Limits = types.DefaultLimits()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Load walks root and loads every remote below it. Remotes that fail to
// load are logged and skipped; only a failed walk is returned as an error.
// The result is sorted by remote ID.
func Load(ctx context.Context, root string, opts Options) ([]Loaded, error) {
	opts.defaults()

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve remotes dir: %w", err)
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("remotes dir %s is not a directory", root)
	}

	var (
		mu     sync.Mutex
		loaded []Loaded
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			opts.Logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if _, ok := regularFile(filepath.Join(path, MetaFile)); !ok {
			return nil
		}

		l, err := LoadRemote(root, path, opts)
		if err != nil {
			opts.Logger.Warn("failed to load remote", zap.String("path", path), zap.Error(err))
			return nil
		}
		if l != nil {
			mu.Lock()
			loaded = append(loaded, *l)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		for _, l := range loaded {
			l.State.Close()
		}
		return nil, err
	}

	slices.SortFunc(loaded, func(a, b Loaded) int {
		switch {
		case a.Remote.ID < b.Remote.ID:
			return -1
		case a.Remote.ID > b.Remote.ID:
			return 1
		}
		return 0
	})
	opts.Logger.Info("remotes loaded", zap.Int("count", len(loaded)), zap.String("root", root))
	return loaded, nil
}

// errSkipped marks remotes that are deliberately not loaded
var errSkipped = errors.New("skipped")

// LoadRemote loads the remote in dir. It returns nil without error when
// the remote is hidden, disabled, incompatible or not detected.
func LoadRemote(root, dir string, opts Options) (*Loaded, error) {
	opts.defaults()

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, fmt.Errorf("remote path: %w", err)
	}
	id := types.NewRemoteID(rel)
	logger := opts.Logger.With(zap.String("remote", string(id)))

	meta, err := ReadMeta(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, err
	}
	if err := admit(meta, opts.Platform); err != nil {
		logger.Info("skipping remote", zap.String("reason", err.Error()))
		return nil, nil
	}

	remote := types.Remote{ID: id, Path: dir, Meta: meta}
	stateOpts := append([]sandbox.Option{
		sandbox.WithRemoteID(id),
		sandbox.WithLimits(opts.Limits),
		sandbox.WithLogger(opts.Logger),
	}, opts.StateOptions...)

	var state *sandbox.State
	if script, ok := ResolvePlatformFile(dir, meta.Remote, "remote", "lua", opts.Platform); ok {
		remote.Script = script
		state, err = sandbox.New(script, dir, stateOpts...)
	} else {
		state, err = sandbox.Empty(append(stateOpts, sandbox.WithRoot(dir))...)
	}
	if err != nil {
		return nil, err
	}

	if path, ok := ResolvePlatformFile(dir, meta.Settings, "settings", "prop", opts.Platform); ok {
		settings, err := ReadSettings(path)
		if err != nil {
			logger.Warn("ignoring settings", zap.Error(err))
		} else {
			state.SetSettings(settings)
		}
	}

	if !state.Detect() {
		logger.Info("skipping remote", zap.String("reason", "not detected"))
		state.Close()
		return nil, nil
	}

	logger.Info("remote loaded", zap.String("name", meta.Name), zap.Bool("script", remote.Script != ""))
	return &Loaded{Remote: remote, State: state}, nil
}

func admit(meta types.RemoteMeta, platform types.Platform) error {
	switch {
	case meta.Hidden:
		return fmt.Errorf("%w: hidden", errSkipped)
	case !meta.Enabled:
		return fmt.Errorf("%w: disabled", errSkipped)
	case !meta.IsCompatible(platform):
		return fmt.Errorf("%w: incompatible platform", errSkipped)
	}
	return nil
}
