// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opensearch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/juju/errors"
	"gopkg.in/httprequest.v1"

	"github.com/canonical/opensearch-plugins/core/health"
	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// ClientConfig holds the REST endpoint of the local node.
type ClientConfig struct {
	// URL is the base URL of the node, e.g. https://10.0.0.4:9200.
	URL string

	// Username and Password are sent with basic auth when Username is
	// set.
	Username string
	Password string

	// HTTPClient is used for requests. http.DefaultClient is used when
	// nil.
	HTTPClient *http.Client
}

// Validate ensures the URL is set.
func (c ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.NotValidf("empty URL")
	}
	return nil
}

// Client talks to the REST API of an OpenSearch node.
type Client struct {
	client httprequest.Client
}

// NewClient returns a Client for the node at cfg.URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = http.DefaultClient
	}
	c := &Client{
		client: httprequest.Client{
			BaseURL: cfg.URL,
			Doer: basicAuthDoer{
				client:   doer,
				username: cfg.Username,
				password: cfg.Password,
			},
			UnmarshalError: httprequest.ErrorUnmarshaler(new(APIError)),
		},
	}
	return c, nil
}

type basicAuthDoer struct {
	client   *http.Client
	username string
	password string
}

func (d basicAuthDoer) Do(req *http.Request) (*http.Response, error) {
	if d.username != "" {
		req.SetBasicAuth(d.username, d.password)
	}
	return d.client.Do(req)
}

// APIError is the body OpenSearch replies with when a request fails.
type APIError struct {
	Cause struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Cause.Type, e.Cause.Reason, e.Status)
}

// NodeInfo is the reply of the REST root.
type NodeInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
	} `json:"version"`
}

// Info returns the description of the node.
func (c *Client) Info(ctx context.Context) (NodeInfo, error) {
	var info NodeInfo
	if err := c.client.Get(ctx, "/", &info); err != nil {
		return NodeInfo{}, errors.Annotate(err, "getting node info")
	}
	return info, nil
}

// ClusterHealth is the reply of /_cluster/health.
type ClusterHealth struct {
	ClusterName      string `json:"cluster_name"`
	Status           string `json:"status"`
	NumberOfNodes    int    `json:"number_of_nodes"`
	UnassignedShards int    `json:"unassigned_shards"`
}

// Health returns the health color of the cluster.
func (c *Client) Health(ctx context.Context) (health.Color, error) {
	var reply ClusterHealth
	if err := c.client.Get(ctx, "/_cluster/health", &reply); err != nil {
		return health.Unknown, errors.Annotate(err, "getting cluster health")
	}
	color, err := health.Parse(reply.Status)
	if err != nil {
		return health.Unknown, errors.Trace(err)
	}
	logger.Debugf("cluster %q health %s", reply.ClusterName, color)
	return color, nil
}

type snapshotRepository struct {
	Type     string         `json:"type"`
	Settings map[string]any `json:"settings"`
}

// SnapshotRepositories returns the snapshot repositories registered in
// the cluster, keyed by name.
func (c *Client) SnapshotRepositories(ctx context.Context) (map[string]plugin.SnapshotRepository, error) {
	var reply map[string]snapshotRepository
	if err := c.client.Get(ctx, "/_snapshot", &reply); err != nil {
		return nil, errors.Annotate(err, "getting snapshot repositories")
	}
	repos := make(map[string]plugin.SnapshotRepository, len(reply))
	for name, r := range reply {
		settings := make(map[string]string, len(r.Settings))
		for k, v := range r.Settings {
			settings[k] = fmt.Sprint(v)
		}
		repos[name] = plugin.SnapshotRepository{Name: name, Type: r.Type, Settings: settings}
	}
	return repos, nil
}

type putSnapshotRepositoryParams struct {
	httprequest.Route `httprequest:"PUT /_snapshot/:name"`
	Name              string             `httprequest:"name,path"`
	Body              snapshotRepository `httprequest:",body"`
}

type acknowledged struct {
	Acknowledged bool `json:"acknowledged"`
}

// PutSnapshotRepository registers the snapshot repository, replacing any
// repository of the same name.
func (c *Client) PutSnapshotRepository(ctx context.Context, repo plugin.SnapshotRepository) error {
	settings := make(map[string]any, len(repo.Settings))
	for k, v := range repo.Settings {
		settings[k] = v
	}
	params := &putSnapshotRepositoryParams{
		Name: repo.Name,
		Body: snapshotRepository{Type: repo.Type, Settings: settings},
	}
	var reply acknowledged
	if err := c.client.Call(ctx, params, &reply); err != nil {
		return errors.Annotatef(err, "registering snapshot repository %q", repo.Name)
	}
	if !reply.Acknowledged {
		return errors.Errorf("registering snapshot repository %q: not acknowledged", repo.Name)
	}
	logger.Infof("registered snapshot repository %q", repo.Name)
	return nil
}
