package sdk

import (
	"context"
	"fmt"

	ovirtsdk "github.com/ovirt/go-ovirt"

	"ovirt-import/internal/config"
	"ovirt-import/internal/domain"
	"ovirt-import/internal/engine"
	"ovirt-import/internal/logger"
)

// Client drives the engine through the oVirt Go SDK.
type Client struct {
	log  *logger.Logger
	conn *ovirtsdk.Connection
}

func Open(ctx context.Context, cfg *config.EngineConfig) (*Client, error) {
	ret := &Client{
		log: logger.NewLogger("EngineSDK"),
	}

	builder := ovirtsdk.NewConnectionBuilder().
		URL(cfg.URL).
		Username(cfg.Username).
		Password(cfg.Password).
		Insecure(cfg.Insecure).
		Compress(true)

	if cfg.CAFile != "" {
		builder = builder.CAFile(cfg.CAFile)
	}

	if cfg.Timeout > 0 {
		builder = builder.Timeout(cfg.Timeout)
	}

	conn, err := builder.Build()
	if err != nil {
		ret.log.Error("Failed to build connection to %s: %v", cfg.URL, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.Test(); err != nil {
		ret.log.Error("Engine connection test failed for %s: %v", cfg.URL, err)
		_ = conn.Close()
		return nil, err
	}

	ret.log.Info("Connected to %s as %s", cfg.URL, cfg.Username)
	ret.conn = conn

	return ret, nil
}

func (c *Client) FindStorageDomain(ctx context.Context, name string) (*domain.StorageDomain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := engine.SearchByName(name)
	c.log.Debug("Searching storage domains: %s", query)

	resp, err := c.conn.SystemService().StorageDomainsService().List().Search(query).Send()
	if err != nil {
		c.log.Error("Failed to list storage domains (%s): %v", query, err)
		return nil, err
	}

	found := make([]domain.StorageDomain, 0)
	if sds, ok := resp.StorageDomains(); ok {
		for _, sd := range sds.Slice() {
			found = append(found, toStorageDomain(sd))
		}
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := engine.SearchByName(name)
	c.log.Debug("Searching clusters: %s", query)

	resp, err := c.conn.SystemService().ClustersService().List().Search(query).Send()
	if err != nil {
		c.log.Error("Failed to list clusters (%s): %v", query, err)
		return nil, err
	}

	found := make([]domain.Cluster, 0)
	if clusters, ok := resp.Clusters(); ok {
		for _, cluster := range clusters.Slice() {
			found = append(found, toCluster(cluster))
		}
	}

	cluster, err := engine.FirstMatch(found, domain.ErrClusterNotFound, name)
	if err != nil {
		c.log.Warn("No cluster matches %s", query)
		return nil, err
	}

	c.log.Debug("Cluster %s -> %s", name, cluster.ID)
	return &cluster, nil
}

func (c *Client) ListExportedVMs(ctx context.Context, exportDomainID string) ([]domain.ExportedVM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := c.vmsService(exportDomainID).List().Send()
	if err != nil {
		c.log.Error("Failed to list VMs on storage domain %s: %v", exportDomainID, err)
		return nil, err
	}

	ret := make([]domain.ExportedVM, 0)
	if vms, ok := resp.Vm(); ok {
		for _, vm := range vms.Slice() {
			ret = append(ret, toExportedVM(vm))
		}
	}

	c.log.Debug("Storage domain %s holds %d VMs", exportDomainID, len(ret))
	return ret, nil
}

func (c *Client) ImportVM(ctx context.Context, req domain.ImportRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	targetSD, err := ovirtsdk.NewStorageDomainBuilder().Id(req.TargetDomainID).Build()
	if err != nil {
		return fmt.Errorf("failed to build storage domain reference: %w", err)
	}

	cluster, err := ovirtsdk.NewClusterBuilder().Id(req.ClusterID).Build()
	if err != nil {
		return fmt.Errorf("failed to build cluster reference: %w", err)
	}

	vm, err := ovirtsdk.NewVmBuilder().Id(req.VMID).Build()
	if err != nil {
		return fmt.Errorf("failed to build vm reference: %w", err)
	}

	c.log.Info("Importing VM %s into storage domain %s, cluster %s", req.VMID, req.TargetDomainID, req.ClusterID)

	_, err = c.vmsService(req.SourceDomainID).
		VmService(req.VMID).
		Import().
		StorageDomain(targetSD).
		Cluster(cluster).
		Vm(vm).
		Clone(req.Clone).
		CollapseSnapshots(req.CollapseSnapshots).
		Exclusive(req.Exclusive).
		Send()
	if err != nil {
		c.log.Error("Failed to import VM %s: %v", req.VMID, err)
		return err
	}

	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) vmsService(storageDomainID string) *ovirtsdk.StorageDomainVmsService {
	return c.conn.SystemService().
		StorageDomainsService().
		StorageDomainService(storageDomainID).
		VmsService()
}
