// Package ocm is a small client for the OpenShift Cluster Manager
// clusters_mgmt API, covering what the analysis needs: fetching a cluster
// and reading its topology.
//
// Usage:
//
//	client, err := ocm.New(ocm.DefaultBaseURL, token, ocm.WithTimeout(30*time.Second))
//	hosted, err := client.IsHostedCluster(ctx, "1a2b3c")
package ocm

// Cluster is the subset of the clusters_mgmt cluster resource we read.
type Cluster struct {
	Kind       string      `json:"kind,omitempty"`
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	State      string      `json:"state,omitempty"`
	Hypershift *Hypershift `json:"hypershift,omitempty"`
	Product    *ObjectRef  `json:"product,omitempty"`
}

// Hypershift carries the hosted-control-plane settings of a cluster.
type Hypershift struct {
	Enabled bool `json:"enabled"`
}

// ObjectRef is a reference to another API object.
type ObjectRef struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
	Href string `json:"href,omitempty"`
}

// IsHosted reports whether the cluster's control plane is hosted.
func (c *Cluster) IsHosted() bool {
	return c.Hypershift != nil && c.Hypershift.Enabled
}

// errorBody is the API error document.
type errorBody struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
	OperationID string `json:"operation_id"`
}
