package kube

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/sanket-telunagi/k8sfs/internal/retry"
)

// ListOptions narrows a pod listing
type ListOptions struct {
	LabelSelector string
	FieldSelector string
}

// ClusterAPI is the narrow view of the cluster API used by the collection pipeline.
// Implementations must be safe for concurrent use.
type ClusterAPI interface {
	ListPods(ctx context.Context, namespace string, opts ListOptions) ([]corev1.Pod, error)
	ListPersistentVolumeClaims(ctx context.Context, namespace string) ([]corev1.PersistentVolumeClaim, error)
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	ListNamespaces(ctx context.Context) ([]string, error)
}

// Options tunes how the client talks to the API server
type Options struct {
	// RequestTimeout is passed to the API server as the list timeout. Zero leaves it unset.
	RequestTimeout time.Duration
	// QPS and Burst configure a client-side rate limit shared by all calls. QPS <= 0 disables it.
	QPS   float64
	Burst int
	// Retry is applied to every call. A nil Retryable predicate defaults to IsTransient.
	Retry retry.Policy
}

// Client implements ClusterAPI on top of a Kubernetes clientset.
// Every call is rate limited and retried on transient failures.
type Client struct {
	logger         *zap.Logger
	kubeClient     kubernetes.Interface
	policy         retry.Policy
	limiter        *rate.Limiter
	requestTimeout time.Duration
}

// NewClient creates a new cluster API client
func NewClient(logger *zap.Logger, kubeClient kubernetes.Interface, opts Options) *Client {
	policy := opts.Retry
	if policy.Retryable == nil {
		policy.Retryable = IsTransient
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}

	var limiter *rate.Limiter
	if opts.QPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), burst)
	}

	return &Client{
		logger:         logger,
		kubeClient:     kubeClient,
		policy:         policy,
		limiter:        limiter,
		requestTimeout: opts.RequestTimeout,
	}
}

func (c *Client) listOptions() metav1.ListOptions {
	opts := metav1.ListOptions{}
	if c.requestTimeout > 0 {
		seconds := int64(c.requestTimeout / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		opts.TimeoutSeconds = &seconds
	}
	return opts
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// ListPods returns the pods of a namespace, optionally filtered by label and field selectors
func (c *Client) ListPods(ctx context.Context, namespace string, opts ListOptions) ([]corev1.Pod, error) {
	op := fmt.Sprintf("list pods in namespace %s", namespace)
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) ([]corev1.Pod, error) {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		listOpts := c.listOptions()
		listOpts.LabelSelector = opts.LabelSelector
		listOpts.FieldSelector = opts.FieldSelector

		pods, err := c.kubeClient.CoreV1().Pods(namespace).List(ctx, listOpts)
		if err != nil {
			c.logger.Debug("Failed to list pods", zap.String("namespace", namespace), zap.Error(err))
			return nil, classify(op, err)
		}
		return pods.Items, nil
	})
}

// ListPersistentVolumeClaims returns the persistent volume claims of a namespace
func (c *Client) ListPersistentVolumeClaims(ctx context.Context, namespace string) ([]corev1.PersistentVolumeClaim, error) {
	op := fmt.Sprintf("list persistent volume claims in namespace %s", namespace)
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) ([]corev1.PersistentVolumeClaim, error) {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		claims, err := c.kubeClient.CoreV1().PersistentVolumeClaims(namespace).List(ctx, c.listOptions())
		if err != nil {
			c.logger.Debug("Failed to list persistent volume claims", zap.String("namespace", namespace), zap.Error(err))
			return nil, classify(op, err)
		}
		return claims.Items, nil
	})
}

// ListNodes returns every node in the cluster
func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	const op = "list nodes"
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) ([]corev1.Node, error) {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		nodes, err := c.kubeClient.CoreV1().Nodes().List(ctx, c.listOptions())
		if err != nil {
			c.logger.Debug("Failed to list nodes", zap.Error(err))
			return nil, classify(op, err)
		}
		return nodes.Items, nil
	})
}

// ListNamespaces returns the names of every namespace in the cluster
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	const op = "list namespaces"
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) ([]string, error) {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		namespaces, err := c.kubeClient.CoreV1().Namespaces().List(ctx, c.listOptions())
		if err != nil {
			return nil, classify(op, err)
		}

		names := make([]string, 0, len(namespaces.Items))
		for _, ns := range namespaces.Items {
			names = append(names, ns.Name)
		}
		return names, nil
	})
}
