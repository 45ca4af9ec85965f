package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ovirt-import/internal/config"
	"ovirt-import/internal/domain"
)

const (
	testAPIURL   = "https://engine.test/ovirt-engine/api"
	testTokenURL = "https://engine.test/ovirt-engine/sso/oauth/token"
	testLogout   = "https://engine.test/ovirt-engine/services/sso-logout"
	testToken    = "sso-token-1"
)

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		URL:      testAPIURL,
		Username: "admin@internal",
		Password: "secret",
		Client:   config.ClientREST,
	}
}

func newMockTransport() *httpmock.MockTransport {
	transport := httpmock.NewMockTransport()

	transport.RegisterResponder(http.MethodPost, testTokenURL,
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseForm(); err != nil {
				return nil, err
			}
			if req.PostForm.Get("grant_type") != "password" ||
				req.PostForm.Get("username") != "admin@internal" ||
				req.PostForm.Get("password") != "secret" ||
				req.PostForm.Get("scope") != SSOScope {
				return httpmock.NewJsonResponse(http.StatusUnauthorized, map[string]string{
					"error":             "access_denied",
					"error_description": "Cannot authenticate user",
				})
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{
				"access_token": testToken,
				"token_type":   "bearer",
				"scope":        SSOScope,
			})
		})

	transport.RegisterResponder(http.MethodGet, testLogout,
		httpmock.NewStringResponder(http.StatusOK, ""))

	return transport
}

// authorized wraps a responder with the checks every API call must pass.
func authorized(t *testing.T, responder httpmock.Responder) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer "+testToken, req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Accept"))
		assert.Equal(t, APIVersion, req.Header.Get("Version"))
		return responder(req)
	}
}

func openTestClient(t *testing.T, transport *httpmock.MockTransport) *Client {
	t.Helper()

	c, err := Open(context.Background(), testEngineConfig(), WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	return c
}

func TestOpen(t *testing.T) {
	t.Run("password grant", func(t *testing.T) {
		transport := newMockTransport()

		c := openTestClient(t, transport)

		assert.Equal(t, testToken, c.token.AccessToken)
		assert.Equal(t, "https://engine.test/ovirt-engine", c.engineURL)
		assert.Equal(t, 1, transport.GetCallCountInfo()["POST "+testTokenURL])
	})

	t.Run("bad credentials", func(t *testing.T) {
		transport := newMockTransport()
		cfg := testEngineConfig()
		cfg.Password = "wrong"

		_, err := Open(context.Background(), cfg, WithHTTPClient(&http.Client{Transport: transport}))

		assert.ErrorContains(t, err, "failed to authenticate as admin@internal")
	})

	t.Run("url without api path", func(t *testing.T) {
		cfg := testEngineConfig()
		cfg.URL = "https://engine.test/ovirt-engine"

		_, err := Open(context.Background(), cfg, WithHTTPClient(&http.Client{Transport: newMockTransport()}))

		assert.ErrorContains(t, err, "must end with /api")
	})
}

func TestFindStorageDomain(t *testing.T) {
	transport := newMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIURL+"/storagedomains",
		authorized(t, func(req *http.Request) (*http.Response, error) {
			switch req.URL.Query().Get("search") {
			case "name=export":
				return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
					"storage_domain": []map[string]string{
						{"id": "sd-export", "name": "export", "type": "export"},
						{"id": "sd-export-2", "name": "export", "type": "export"},
					},
				})
			default:
				return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{})
			}
		}))

	c := openTestClient(t, transport)

	t.Run("first match wins", func(t *testing.T) {
		sd, err := c.FindStorageDomain(context.Background(), "export")
		require.NoError(t, err)
		assert.Equal(t, "sd-export", sd.ID)
		assert.Equal(t, domain.StorageDomainTypeExport, sd.Type)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := c.FindStorageDomain(context.Background(), "data")
		assert.ErrorIs(t, err, domain.ErrStorageDomainNotFound)
	})
}

func TestFindCluster(t *testing.T) {
	transport := newMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIURL+"/clusters",
		authorized(t, func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("search") != "name=LabOvirt41" {
				return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{})
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"cluster": []map[string]string{{"id": "cl-1", "name": "LabOvirt41"}},
			})
		}))

	c := openTestClient(t, transport)

	cl, err := c.FindCluster(context.Background(), "LabOvirt41")
	require.NoError(t, err)
	assert.Equal(t, domain.Cluster{ID: "cl-1", Name: "LabOvirt41"}, *cl)

	_, err = c.FindCluster(context.Background(), "Default")
	assert.ErrorIs(t, err, domain.ErrClusterNotFound)
}

func TestListExportedVMs(t *testing.T) {
	transport := newMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIURL+"/storagedomains/sd-export/vms",
		authorized(t, httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"vm": []map[string]string{
				{"id": "vm-1", "name": "web01", "status": "down"},
				{"id": "vm-2", "name": "db01"},
			},
		})))
	transport.RegisterResponder(http.MethodGet, testAPIURL+"/storagedomains/sd-empty/vms",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{}))

	c := openTestClient(t, transport)

	vms, err := c.ListExportedVMs(context.Background(), "sd-export")
	require.NoError(t, err)
	require.Len(t, vms, 2)
	assert.Equal(t, domain.ExportedVM{ID: "vm-1", Name: "web01", Status: domain.VmStatusDown}, vms[0])
	assert.Equal(t, domain.VmStatusUnknown, vms[1].Status)

	vms, err = c.ListExportedVMs(context.Background(), "sd-empty")
	require.NoError(t, err)
	assert.Empty(t, vms)
}

func TestImportVM(t *testing.T) {
	importURL := testAPIURL + "/storagedomains/sd-export/vms/vm-1/import"

	t.Run("sends import action", func(t *testing.T) {
		transport := newMockTransport()

		var got map[string]interface{}
		transport.RegisterResponder(http.MethodPost, importURL,
			authorized(t, func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
				body, err := io.ReadAll(req.Body)
				if err != nil {
					return nil, err
				}
				if err := json.Unmarshal(body, &got); err != nil {
					return nil, err
				}
				return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"status": "complete"})
			}))

		c := openTestClient(t, transport)

		err := c.ImportVM(context.Background(), domain.ImportRequest{
			SourceDomainID: "sd-export",
			VMID:           "vm-1",
			TargetDomainID: "sd-data",
			ClusterID:      "cl-1",
			Clone:          true,
		})
		require.NoError(t, err)

		assert.Equal(t, map[string]interface{}{"id": "sd-data"}, got["storage_domain"])
		assert.Equal(t, map[string]interface{}{"id": "cl-1"}, got["cluster"])
		assert.Equal(t, map[string]interface{}{"id": "vm-1"}, got["vm"])
		assert.Equal(t, "true", got["clone"])
		assert.Equal(t, "false", got["collapse_snapshots"])
		assert.Equal(t, 1, transport.GetCallCountInfo()["POST "+importURL])
	})

	t.Run("engine fault", func(t *testing.T) {
		transport := newMockTransport()
		transport.RegisterResponder(http.MethodPost, importURL,
			httpmock.NewJsonResponderOrPanic(http.StatusConflict, map[string]string{
				"reason": "Operation Failed",
				"detail": "[Cannot import VM. VM with the same identifier already exists.]",
			}))

		c := openTestClient(t, transport)

		err := c.ImportVM(context.Background(), domain.ImportRequest{
			SourceDomainID: "sd-export",
			VMID:           "vm-1",
			TargetDomainID: "sd-data",
			ClusterID:      "cl-1",
		})

		var fault *FaultError
		require.True(t, errors.As(err, &fault))
		assert.Equal(t, http.StatusConflict, fault.StatusCode)
		assert.Equal(t, "Operation Failed", fault.Reason)
		assert.Contains(t, fault.Detail, "already exists")
	})

	t.Run("transport error", func(t *testing.T) {
		transport := newMockTransport()
		transport.RegisterResponder(http.MethodPost, importURL,
			httpmock.NewErrorResponder(errors.New("connection reset")))

		c := openTestClient(t, transport)

		err := c.ImportVM(context.Background(), domain.ImportRequest{
			SourceDomainID: "sd-export",
			VMID:           "vm-1",
		})
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestClose(t *testing.T) {
	transport := newMockTransport()
	c := openTestClient(t, transport)

	require.NoError(t, c.Close())
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET "+testLogout])

	// a second close is a no-op
	require.NoError(t, c.Close())
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET "+testLogout])
}

func TestCloseLogoutFailure(t *testing.T) {
	transport := newMockTransport()
	c := openTestClient(t, transport)

	transport.RegisterResponder(http.MethodGet, testLogout,
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	err := c.Close()

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, http.StatusInternalServerError, fault.StatusCode)

	// the token is dropped even when the engine rejects the logout
	require.NoError(t, c.Close())
}

func TestNewFaultError(t *testing.T) {
	fault := newFaultError(http.StatusBadGateway, "502 Bad Gateway", []byte("<html>proxy error</html>\n"))

	assert.Equal(t, "502 Bad Gateway", fault.Reason)
	assert.Equal(t, "<html>proxy error</html>", fault.Detail)
	assert.Equal(t, "engine returned 502: 502 Bad Gateway <html>proxy error</html>", fault.Error())
}

func TestEnginePrefix(t *testing.T) {
	testCases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://engine.lab/ovirt-engine/api", want: "https://engine.lab/ovirt-engine"},
		{url: "https://engine.lab:8443/ovirt-engine/api", want: "https://engine.lab:8443/ovirt-engine"},
		{url: "https://engine.lab/api", want: "https://engine.lab"},
		{url: "https://engine.lab/ovirt-engine", wantErr: true},
		{url: "engine.lab/ovirt-engine/api", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := enginePrefix(tc.url)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		hc, err := newHTTPClient(&config.EngineConfig{Insecure: true, Timeout: config.DefaultTimeout})
		require.NoError(t, err)
		assert.Equal(t, config.DefaultTimeout, hc.Timeout)
		assert.True(t, hc.Transport.(*http.Transport).TLSClientConfig.InsecureSkipVerify)
	})

	t.Run("missing CA file", func(t *testing.T) {
		_, err := newHTTPClient(&config.EngineConfig{CAFile: filepath.Join(t.TempDir(), "ca.pem")})
		assert.ErrorContains(t, err, "failed to read CA file")
	})

	t.Run("CA file without certificates", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

		_, err := newHTTPClient(&config.EngineConfig{CAFile: path})
		assert.ErrorContains(t, err, "no certificates found")
	})
}
