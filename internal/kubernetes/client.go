// Package kubernetes reads the shared GitLab token from a Kubernetes Secret.
package kubernetes

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes dynamic client for Secret lookups.
type Client struct {
	dynamicClient dynamic.Interface
	namespace     string
}

// SecretGVR identifies core/v1 Secrets.
var SecretGVR = schema.GroupVersionResource{
	Group:    "",
	Version:  "v1",
	Resource: "secrets",
}

// NewClient creates a new Kubernetes client.
// It tries in-cluster config first, then falls back to kubeconfig.
func NewClient(namespace string) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		// Fall back to kubeconfig
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		configOverrides := &clientcmd.ConfigOverrides{}
		kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)
		config, err = kubeConfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes config: %w", err)
		}
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return NewClientFromDynamic(dynamicClient, namespace), nil
}

// NewClientFromDynamic wraps an existing dynamic client.
func NewClientFromDynamic(dynamicClient dynamic.Interface, namespace string) *Client {
	return &Client{
		dynamicClient: dynamicClient,
		namespace:     namespace,
	}
}

// SecretValue returns the decoded value stored under key in the named Secret.
// The value itself never appears in returned errors.
func (c *Client) SecretValue(ctx context.Context, name, key string) (string, error) {
	obj, err := c.dynamicClient.Resource(SecretGVR).Namespace(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s/%s: %w", c.namespace, name, err)
	}
	return secretValue(obj, key)
}

func secretValue(obj *unstructured.Unstructured, key string) (string, error) {
	// stringData is write-only on a real API server but fake clients keep it.
	if v, found, _ := unstructured.NestedString(obj.Object, "stringData", key); found {
		return strings.TrimSpace(v), nil
	}

	encoded, found, err := unstructured.NestedString(obj.Object, "data", key)
	if err != nil {
		return "", fmt.Errorf("failed to read key %q of secret %s: %w", key, obj.GetName(), err)
	}
	if !found {
		return "", fmt.Errorf("secret %s has no key %q", obj.GetName(), key)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode key %q of secret %s: %w", key, obj.GetName(), err)
	}
	return strings.TrimSpace(string(decoded)), nil
}
