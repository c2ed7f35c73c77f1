package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/sanket-telunagi/k8sfs/internal/version"
)

// ClientMode represents the mode for creating Kubernetes clients
type ClientMode string

const (
	// InClusterMode uses in-cluster configuration (ServiceAccount)
	InClusterMode ClientMode = "incluster"
	// KubeconfigMode uses kubeconfig file
	KubeconfigMode ClientMode = "kubeconfig"
)

// Options control how the REST client is built
type Options struct {
	Mode           ClientMode
	KubeconfigPath string
	// Context selects a kubeconfig context. Empty uses the current context.
	Context string
	// Timeout bounds every HTTP request. Zero leaves it unset.
	Timeout time.Duration
}

// Factory creates Kubernetes clients
type Factory struct {
	logger *zap.Logger
	config *rest.Config
	client kubernetes.Interface
}

// NewFactory creates a new client factory.
// Client-side throttling of client-go is disabled; callers apply their own limiter.
func NewFactory(logger *zap.Logger, opts Options) (*Factory, error) {
	config, err := restConfig(logger, opts)
	if err != nil {
		return nil, err
	}

	config.UserAgent = version.UserAgent()
	config.QPS = -1
	if opts.Timeout > 0 {
		config.Timeout = opts.Timeout
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	logger.Info("Kubernetes client factory created successfully", zap.String("host", config.Host))

	return &Factory{
		logger: logger,
		config: config,
		client: clientset,
	}, nil
}

func restConfig(logger *zap.Logger, opts Options) (*rest.Config, error) {
	switch opts.Mode {
	case InClusterMode:
		logger.Info("Creating in-cluster Kubernetes client")
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-cluster config: %w", err)
		}
		return config, nil
	case KubeconfigMode:
		logger.Info("Creating kubeconfig-based Kubernetes client",
			zap.String("kubeconfig", opts.KubeconfigPath),
			zap.String("context", opts.Context))
		config, err := buildKubeconfigFromPath(opts.KubeconfigPath, opts.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubeconfig-based config: %w", err)
		}
		return config, nil
	default:
		return nil, fmt.Errorf("unsupported client mode: %s", opts.Mode)
	}
}

// Client returns the Kubernetes clientset
func (f *Factory) Client() kubernetes.Interface {
	return f.client
}

// Config returns the REST config
func (f *Factory) Config() *rest.Config {
	return f.config
}

// buildKubeconfigFromPath builds a REST config from the given kubeconfig path and context
func buildKubeconfigFromPath(kubeconfigPath, context string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		// Try default locations
		if kubeconfig := os.Getenv("KUBECONFIG"); kubeconfig != "" {
			kubeconfigPath = kubeconfig
		} else if home := homedir.HomeDir(); home != "" {
			kubeconfigPath = filepath.Join(home, ".kube", "config")
		} else {
			return nil, fmt.Errorf("no kubeconfig path provided and unable to determine default location")
		}
	}

	if _, err := os.Stat(kubeconfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("kubeconfig file does not exist: %s", kubeconfigPath)
	}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
		&clientcmd.ConfigOverrides{CurrentContext: context},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build config from kubeconfig %s: %w", kubeconfigPath, err)
	}

	return config, nil
}

// ValidateConnection tests the connection to the Kubernetes API server
func (f *Factory) ValidateConnection() error {
	f.logger.Info("Validating Kubernetes connection")

	serverVersion, err := f.client.Discovery().ServerVersion()
	if err != nil {
		return fmt.Errorf("failed to connect to Kubernetes API: %w", err)
	}

	f.logger.Info("Kubernetes connection validated",
		zap.String("gitVersion", serverVersion.GitVersion),
		zap.String("platform", serverVersion.Platform),
	)

	return nil
}
