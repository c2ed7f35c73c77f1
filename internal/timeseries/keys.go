package timeseries

import "strings"

// Series key prefixes. A full key is "<prefix>.<subject>", for example "namespace.pods.team-a".
const (
	NamespacePods  = "namespace.pods"
	NamespaceNodes = "namespace.nodes"
	NodePods       = "node.pods"
	ClusterPods    = "cluster.pods"
	ClusterNodes   = "cluster.nodes"
)

// Key joins a prefix and its subject
func Key(prefix, subject string) string {
	if subject == "" {
		return prefix
	}
	return prefix + "." + subject
}

// SplitKey returns the prefix and subject of a key built by Key
func SplitKey(key string) (prefix, subject string) {
	for _, p := range []string{NamespacePods, NamespaceNodes, NodePods} {
		if strings.HasPrefix(key, p+".") {
			return p, strings.TrimPrefix(key, p+".")
		}
	}
	return key, ""
}
