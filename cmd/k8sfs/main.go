package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/config"
	"github.com/sanket-telunagi/k8sfs/internal/logging"
	"github.com/sanket-telunagi/k8sfs/internal/version"
)

// cliFlags holds command line values. Only flags set explicitly override the configuration.
type cliFlags struct {
	configPath    string
	namespaces    []string
	allNamespaces bool
	outputs       []string
	outputDir     string
	watch         bool
	interval      time.Duration
	metricsAddr   string
	kubeconfig    string
	kubeContext   string
	inCluster     bool
	logLevel      string
	showVersion   bool

	fs *pflag.FlagSet
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := pflag.NewFlagSet(version.Name, pflag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", os.Getenv("K8SFS_CONFIG"), "Path to a YAML configuration file")
	fs.StringSliceVarP(&f.namespaces, "namespaces", "n", nil, "Namespaces to collect (comma separated)")
	fs.BoolVarP(&f.allNamespaces, "all-namespaces", "A", false, "Collect every namespace in the cluster")
	fs.StringSliceVarP(&f.outputs, "output", "o", nil, "Outputs: console, json, prometheus, all")
	fs.StringVar(&f.outputDir, "output-dir", "", "Directory for the JSON output")
	fs.BoolVarP(&f.watch, "watch", "w", false, "Collect repeatedly until interrupted")
	fs.DurationVar(&f.interval, "interval", 0, "Interval between collections in watch mode")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Listen address of the metrics and snapshot server")
	fs.StringVar(&f.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	fs.StringVar(&f.kubeContext, "context", "", "Kubeconfig context to use")
	fs.BoolVar(&f.inCluster, "in-cluster", false, "Use the in-cluster service account")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.showVersion, "version", false, "Print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.fs = fs
	return f, nil
}

// apply overrides cfg with every flag the user set
func (f *cliFlags) apply(cfg *config.Config) {
	changed := f.fs.Changed
	if changed("namespaces") {
		cfg.Collection.Namespaces = f.namespaces
	}
	if changed("all-namespaces") {
		cfg.Collection.AllNamespaces = f.allNamespaces
	}
	if changed("output") {
		cfg.Export.Outputs = f.outputs
	}
	if changed("output-dir") {
		cfg.Export.OutputDir = f.outputDir
	}
	if changed("interval") {
		cfg.Collection.WatchInterval = f.interval
	}
	if changed("metrics-addr") {
		cfg.Export.MetricsAddr = f.metricsAddr
	}
	if changed("kubeconfig") {
		cfg.Kubernetes.KubeconfigPath = f.kubeconfig
	}
	if changed("context") {
		cfg.Kubernetes.Context = f.kubeContext
	}
	if changed("in-cluster") && f.inCluster {
		cfg.Kubernetes.Mode = "incluster"
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(2)
	}

	if flags.showVersion {
		fmt.Println(version.Get().String())
		return
	}

	// Load configuration
	cfg, err := config.LoadFromFile(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flags.apply(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	info := version.Get()
	logger.Info("Starting filesystem collector",
		zap.String("version", info.Version),
		zap.String("gitCommit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("goVersion", info.GoVersion),
		zap.Bool("watch", flags.watch),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize collector", zap.Error(err))
		os.Exit(1)
	}

	if flags.watch {
		err = app.watch(ctx)
	} else {
		err = app.runOnce(ctx)
	}
	if err != nil {
		logger.Error("Collection failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Collector exited")
}
