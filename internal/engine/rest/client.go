package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"resty.dev/v3"

	"ovirt-import/internal/config"
	"ovirt-import/internal/domain"
	"ovirt-import/internal/engine"
	"ovirt-import/internal/logger"
)

const (
	APIVersion = "4"
	SSOScope   = "ovirt-app-api"
)

// Client drives the engine REST API directly, authenticating through the
// engine's OAuth SSO endpoint.
type Client struct {
	log       *logger.Logger
	apiURL    string
	engineURL string
	token     *oauth2.Token
	resty     *resty.Client
}

type options struct {
	httpClient *http.Client
}

type Option func(*options)

// WithHTTPClient replaces the TLS-configured client built from the config.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

func Open(ctx context.Context, cfg *config.EngineConfig, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ret := &Client{
		log:    logger.NewLogger("EngineREST"),
		apiURL: strings.TrimRight(cfg.URL, "/"),
	}

	engineURL, err := enginePrefix(ret.apiURL)
	if err != nil {
		ret.log.Error("Invalid engine URL %s: %v", cfg.URL, err)
		return nil, err
	}
	ret.engineURL = engineURL

	hc := o.httpClient
	if hc == nil {
		hc, err = newHTTPClient(cfg)
		if err != nil {
			ret.log.Error("Failed to build HTTP client: %v", err)
			return nil, err
		}
	}

	sso := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  ret.engineURL + "/sso/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{SSOScope},
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, hc)
	ret.token, err = sso.PasswordCredentialsToken(tokenCtx, cfg.Username, cfg.Password)
	if err != nil {
		ret.log.Error("SSO login failed for %s: %v", cfg.Username, err)
		return nil, fmt.Errorf("failed to authenticate as %s: %w", cfg.Username, err)
	}

	ret.log.Info("Authenticated to %s as %s", ret.engineURL, cfg.Username)

	ret.resty = resty.NewWithClient(hc).
		SetBaseURL(ret.apiURL).
		SetHeader("Accept", "application/json").
		SetHeader("Version", APIVersion).
		SetAuthToken(ret.token.AccessToken)

	return ret, nil
}

func (c *Client) FindStorageDomain(ctx context.Context, name string) (*domain.StorageDomain, error) {
	query := engine.SearchByName(name)

	var list storageDomainList
	if err := c.get(ctx, "/storagedomains", query, &list); err != nil {
		c.log.Error("Failed to list storage domains (%s): %v", query, err)
		return nil, err
	}

	found := make([]domain.StorageDomain, 0, len(list.StorageDomains))
	for _, sd := range list.StorageDomains {
		found = append(found, sd.toDomain())
	}

	sd, err := engine.FirstMatch(found, domain.ErrStorageDomainNotFound, name)
	if err != nil {
		c.log.Warn("No storage domain matches %s", query)
		return nil, err
	}

	c.log.Debug("Storage domain %s -> %s", name, sd.ID)
	return &sd, nil
}

func (c *Client) FindCluster(ctx context.Context, name string) (*domain.Cluster, error) {
	query := engine.SearchByName(name)

	var list clusterList
	if err := c.get(ctx, "/clusters", query, &list); err != nil {
		c.log.Error("Failed to list clusters (%s): %v", query, err)
		return nil, err
	}

	found := make([]domain.Cluster, 0, len(list.Clusters))
	for _, cl := range list.Clusters {
		found = append(found, cl.toDomain())
	}

	cl, err := engine.FirstMatch(found, domain.ErrClusterNotFound, name)
	if err != nil {
		c.log.Warn("No cluster matches %s", query)
		return nil, err
	}

	c.log.Debug("Cluster %s -> %s", name, cl.ID)
	return &cl, nil
}

func (c *Client) ListExportedVMs(ctx context.Context, exportDomainID string) ([]domain.ExportedVM, error) {
	path := fmt.Sprintf("/storagedomains/%s/vms", url.PathEscape(exportDomainID))

	var list vmList
	if err := c.get(ctx, path, "", &list); err != nil {
		c.log.Error("Failed to list VMs on storage domain %s: %v", exportDomainID, err)
		return nil, err
	}

	ret := make([]domain.ExportedVM, 0, len(list.Vms))
	for _, v := range list.Vms {
		ret = append(ret, v.toDomain())
	}

	c.log.Debug("Storage domain %s holds %d VMs", exportDomainID, len(ret))
	return ret, nil
}

func (c *Client) ImportVM(ctx context.Context, req domain.ImportRequest) error {
	path := fmt.Sprintf("/storagedomains/%s/vms/%s/import",
		url.PathEscape(req.SourceDomainID), url.PathEscape(req.VMID))

	action := importAction{
		StorageDomain:     &ref{ID: req.TargetDomainID},
		Cluster:           &ref{ID: req.ClusterID},
		Vm:                &ref{ID: req.VMID},
		Clone:             req.Clone,
		CollapseSnapshots: req.CollapseSnapshots,
		Exclusive:         req.Exclusive,
	}

	requestBody, err := json.Marshal(action)
	if err != nil {
		return err
	}

	c.log.Info("Importing VM %s into storage domain %s, cluster %s", req.VMID, req.TargetDomainID, req.ClusterID)

	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(requestBody).
		Post(path)

	if err = c.decode(http.MethodPost, path, resp, err, nil); err != nil {
		c.log.Error("Failed to import VM %s: %v", req.VMID, err)
		return err
	}

	return nil
}

// Close revokes the SSO token.
func (c *Client) Close() error {
	if c.token == nil {
		return nil
	}

	logoutURL := c.engineURL + "/services/sso-logout"

	resp, err := c.resty.R().
		SetQueryParam("token", c.token.AccessToken).
		Get(logoutURL)

	c.token = nil

	if err = c.decode(http.MethodGet, "/services/sso-logout", resp, err, nil); err != nil {
		c.log.Warn("SSO logout failed: %v", err)
		return err
	}

	c.log.Debug("SSO token revoked")
	return nil
}

func (c *Client) get(ctx context.Context, path, search string, out interface{}) error {
	req := c.resty.R().SetContext(ctx)
	if search != "" {
		req.SetQueryParam("search", search)
	}

	resp, err := req.Get(path)
	return c.decode(http.MethodGet, path, resp, err, out)
}

func (c *Client) decode(method, path string, resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return fmt.Errorf("error communicating with engine; %w", err)
	}

	//nolint:errcheck
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body; %w", err)
	}

	c.log.Debug("%s %s -> %s", method, path, resp.Status())

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return newFaultError(resp.StatusCode(), resp.Status(), body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return nil
}

// enginePrefix turns https://host/ovirt-engine/api into https://host/ovirt-engine.
func enginePrefix(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", err
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("engine url %q must be absolute", apiURL)
	}

	if !strings.HasSuffix(u.Path, "/api") {
		return "", fmt.Errorf("engine url %q must end with /api", apiURL)
	}

	u.Path = strings.TrimSuffix(u.Path, "/api")
	u.RawQuery = ""

	return u.String(), nil
}

func newHTTPClient(cfg *config.EngineConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.Insecure, //nolint:gosec
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", cfg.CAFile, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates found in CA file " + cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}
