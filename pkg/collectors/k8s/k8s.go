// Package k8s summarizes one Kubernetes context for the bar: node readiness,
// pod phases and deployments that are short of replicas.
package k8s

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Name is the collector's registry key.
const Name = "k8s"

const defaultInterval = 30 * time.Second

// Config configures the collector.
type Config struct {
	Interval time.Duration
	// Kubeconfig overrides the default loading rules (KUBECONFIG, ~/.kube/config).
	Kubeconfig string
	// Context selects a kubeconfig context; empty means the current one.
	Context string
	// Namespaces restricts pods and deployments; empty means all.
	Namespaces []string
}

// Summary is the result of one Collect.
type Summary struct {
	Context    string
	ReadyNodes int
	TotalNodes int

	RunningPods int
	PendingPods int
	FailedPods  int
	TotalPods   int

	// Degraded lists deployments with fewer available than desired replicas,
	// as namespace/name.
	Degraded []string
}

// Client is the subset of the Kubernetes API the collector needs.
type Client interface {
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)
	ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error)
}

type clientset struct {
	cs kubernetes.Interface
}

func (c *clientset) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *clientset) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	list, err := c.cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *clientset) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	list, err := c.cs.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// clientFactory builds a Client and reports the context name it resolved to.
type clientFactory func(kubeconfig, context string) (Client, string, error)

func defaultClientFactory(kubeconfig, ctxName string) (Client, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: ctxName}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	raw, err := loader.RawConfig()
	if err != nil {
		return nil, "", fmt.Errorf("load kubeconfig: %w", err)
	}
	if ctxName == "" {
		ctxName = raw.CurrentContext
	}

	restCfg, err := loader.ClientConfig()
	if err != nil {
		return nil, ctxName, fmt.Errorf("build client config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, ctxName, fmt.Errorf("create clientset: %w", err)
	}
	return &clientset{cs: cs}, ctxName, nil
}

// Collector polls one cluster.
type Collector struct {
	cfg     Config
	factory clientFactory

	mu      sync.Mutex
	client  Client
	context string
	healthy bool
}

// New returns a collector that loads credentials on first use.
func New(cfg Config) *Collector {
	return newWithFactory(cfg, defaultClientFactory)
}

func newWithFactory(cfg Config, factory clientFactory) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Collector{cfg: cfg, factory: factory, healthy: true}
}

func (c *Collector) Name() string            { return Name }
func (c *Collector) Interval() time.Duration { return c.cfg.Interval }

func (c *Collector) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

func (c *Collector) setHealthy(v bool) {
	c.mu.Lock()
	c.healthy = v
	c.mu.Unlock()
}

// connect returns the cached client, building it if needed. A failed build
// is retried on the next cycle.
func (c *Collector) connect() (Client, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, c.context, nil
	}
	client, name, err := c.factory(c.cfg.Kubeconfig, c.cfg.Context)
	if err != nil {
		return nil, name, err
	}
	c.client, c.context = client, name
	return client, name, nil
}

// Collect lists nodes, pods and deployments. Failing to reach the API
// server is an error; failing to list pods or deployments in one namespace
// returns the partial summary together with the error.
func (c *Collector) Collect(ctx context.Context) (any, error) {
	client, name, err := c.connect()
	if err != nil {
		c.setHealthy(false)
		return nil, err
	}

	nodes, err := client.ListNodes(ctx)
	if err != nil {
		c.setHealthy(false)
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	s := &Summary{Context: name, TotalNodes: len(nodes)}
	for i := range nodes {
		if nodeReady(&nodes[i]) {
			s.ReadyNodes++
		}
	}

	var errs []error
	for _, ns := range c.namespaces() {
		pods, err := client.ListPods(ctx, ns)
		if err != nil {
			errs = append(errs, fmt.Errorf("list pods in %q: %w", ns, err))
		} else {
			countPods(s, pods)
		}

		deps, err := client.ListDeployments(ctx, ns)
		if err != nil {
			errs = append(errs, fmt.Errorf("list deployments in %q: %w", ns, err))
			continue
		}
		for i := range deps {
			if degraded(&deps[i]) {
				s.Degraded = append(s.Degraded, deps[i].Namespace+"/"+deps[i].Name)
			}
		}
	}

	err = errors.Join(errs...)
	c.setHealthy(err == nil)
	return s, err
}

// namespaces returns the configured namespaces, or "" for all of them.
func (c *Collector) namespaces() []string {
	if len(c.cfg.Namespaces) == 0 {
		return []string{metav1.NamespaceAll}
	}
	return c.cfg.Namespaces
}

func nodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func countPods(s *Summary, pods []corev1.Pod) {
	s.TotalPods += len(pods)
	for i := range pods {
		switch pods[i].Status.Phase {
		case corev1.PodRunning:
			s.RunningPods++
		case corev1.PodPending:
			s.PendingPods++
		case corev1.PodFailed:
			s.FailedPods++
		}
	}
}

func degraded(dep *appsv1.Deployment) bool {
	want := int32(1)
	if dep.Spec.Replicas != nil {
		want = *dep.Spec.Replicas
	}
	return dep.Status.AvailableReplicas < want
}
