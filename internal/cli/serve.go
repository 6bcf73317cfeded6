package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tutu-network/studytrack/internal/api"
	"github.com/tutu-network/studytrack/internal/infra/watch"
)

// ─── serve ──────────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().Bool("no-watch", false, "Disable the directory watcher")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracker HTTP server",
	Long: `Start the HTTP server for the browser page. The API lives under /api and
every other path is served from the base directory, so the page and the
PDFs load from the same origin. Stops cleanly on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

const shutdownTimeout = 5 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		rt.cfg.API.Port = port
	}
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	srv := api.NewServer(rt.engine, rt.log)
	srv.SetStaticDir(rt.cfg.PendingDir())
	if rt.cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	ln, err := net.Listen("tcp", rt.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", rt.cfg.Addr(), err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if rt.cfg.Watch.Enabled && !noWatch {
		w, err := newReconcileWatcher(rt)
		if err != nil {
			stop()
			g.Wait()
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	logBanner(rt, ln.Addr())

	// Report any divergence left over from before this process started.
	if _, err := reconcileAndLog(rt); err != nil {
		rt.log.WithError(err).Warn("initial reconcile failed")
	}

	err = g.Wait()
	rt.log.Info("server stopped")
	return err
}

// newReconcileWatcher reconciles the ledger whenever artifacts change on disk.
func newReconcileWatcher(rt *runtime) (*watch.Watcher, error) {
	debounce, err := rt.cfg.WatchDebounce()
	if err != nil {
		return nil, err
	}
	return watch.New(watch.Options{
		Dirs:     []string{rt.files.PendingDir(), rt.files.DoneDir()},
		Ext:      rt.files.Ext(),
		Debounce: debounce,
	}, func(changes []watch.Change) {
		rt.log.WithField("changes", len(changes)).Debug("artifacts changed on disk")
		if _, err := reconcileAndLog(rt); err != nil {
			rt.log.WithError(err).Warn("reconcile after change failed")
		}
	}, rt.log)
}

func reconcileAndLog(rt *runtime) (bool, error) {
	rec, err := rt.engine.Reconcile()
	if err != nil {
		return false, err
	}
	if !rec.InSync {
		rt.log.WithFields(logrus.Fields{
			"misplaced": rec.Misplaced,
			"untracked": rec.Untracked,
		}).Warn("ledger and artifacts diverge")
	}
	return rec.InSync, nil
}

func logBanner(rt *runtime, addr net.Addr) {
	port := rt.cfg.API.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	fields := logrus.Fields{
		"local":    fmt.Sprintf("http://localhost:%d", port),
		"base_dir": rt.files.PendingDir(),
		"done_dir": rt.files.DoneDir(),
		"state":    rt.cfg.StatePath(),
	}
	if ip := lanIP(); ip != "" {
		fields["lan"] = fmt.Sprintf("http://%s:%d", ip, port)
	}
	rt.log.WithFields(fields).Info("studytrack server running")
}

// lanIP returns the first non-loopback IPv4 address, or "".
func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
