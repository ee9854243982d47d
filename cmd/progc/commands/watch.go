package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gogpu/progc"
	"github.com/gogpu/progc/cmd/progc/internal/manifest"
)

type watchOptions struct {
	manifest string
	debounce time.Duration
	session  sessionOptions
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch -f <manifest>",
	Short: "Recompile programs when their files change",
	Long: `Compile every program of a manifest, then watch the manifest and its shader
files. After a change only programs whose description changed are rebuilt.

Press Ctrl-C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout(), watchOpts)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.manifest, "file", "f", "", "program manifest (YAML)")
	watchCmd.Flags().DurationVar(&watchOpts.debounce, "debounce", 100*time.Millisecond, "quiet period before rebuilding")
	addSessionFlags(watchCmd, &watchOpts.session)
	watchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(watchCmd)
}

// watcher rebuilds a session from a manifest.
type watcher struct {
	out     io.Writer
	path    string
	session *session
	catalog *catalog
	fs      *fsnotify.Watcher

	// tracked holds the cleaned paths whose events trigger a rebuild.
	tracked map[string]bool
	dirs    map[string]bool
}

func runWatch(ctx context.Context, out io.Writer, o watchOptions) error {
	m, err := manifest.Load(o.manifest)
	if err != nil {
		return err
	}
	s, err := openSession(o.session, m.PriorityLevels)
	if err != nil {
		return err
	}
	defer s.close()

	w, err := newWatcher(out, o.manifest, s)
	if err != nil {
		return err
	}
	defer w.close()
	w.reload(ctx)

	debounce := time.NewTimer(o.debounce)
	debounce.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.tracked[filepath.Clean(ev.Name)] && isContentChange(ev) {
				debounce.Reset(o.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			progc.Logger().Warn("progc: watch error", "error", err)
		case <-debounce.C:
			w.reload(ctx)
		}
	}
}

func newWatcher(out io.Writer, path string, s *session) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{
		out:     out,
		path:    path,
		session: s,
		catalog: newCatalog(),
		fs:      fsw,
		tracked: make(map[string]bool),
		dirs:    make(map[string]bool),
	}, nil
}

func (w *watcher) close() error { return w.fs.Close() }

// reload parses the manifest and rebuilds changed programs. Errors are
// reported and the previous programs are kept.
func (w *watcher) reload(ctx context.Context) {
	m, err := manifest.Load(w.path)
	if err != nil {
		w.track([]string{w.path})
		fmt.Fprintf(w.out, "reload: %v\n", err)
		return
	}
	w.track(append([]string{w.path}, m.StageFiles()...))
	entries, err := m.Entries(ctx)
	if err != nil {
		fmt.Fprintf(w.out, "reload: %v\n", err)
		return
	}

	changed, removed := w.catalog.update(entries)
	for _, name := range removed {
		w.session.remove(name)
		fmt.Fprintf(w.out, "removed %s\n", name)
	}
	if len(changed) == 0 {
		fmt.Fprintf(w.out, "no changes (%d programs)\n", w.catalog.len())
		return
	}
	results, elapsed, err := w.session.build(ctx, changed)
	if err != nil {
		for _, e := range changed {
			w.catalog.forget(e.Name)
		}
		fmt.Fprintf(w.out, "build: %v\n", err)
		return
	}
	printResults(w.out, results, elapsed)
}

// track watches the directories of paths. Editors replace files by
// renaming, so directories are watched instead of the files themselves.
func (w *watcher) track(paths []string) {
	clear(w.tracked)
	for _, p := range paths {
		p = filepath.Clean(p)
		w.tracked[p] = true
		dir := filepath.Dir(p)
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			progc.Logger().Warn("progc: cannot watch directory", "dir", dir, "error", err)
			continue
		}
		w.dirs[dir] = true
	}
}

func isContentChange(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
