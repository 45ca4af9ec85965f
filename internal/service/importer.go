package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"ovirt-import/internal/config"
	"ovirt-import/internal/domain"
	"ovirt-import/internal/engine"
	"ovirt-import/internal/logger"
)

const NoVMsWarning = "Warning: no vms to export"

// ImportService moves every VM staged on the export storage domain into the
// target storage domain and cluster.
type ImportService struct {
	config.ImportConfig
	log    *logger.Logger
	engine engine.Engine
	out    io.Writer
}

func NewImportService(cfg *config.ImportConfig, e engine.Engine, out io.Writer) *ImportService {
	return &ImportService{
		ImportConfig: *cfg,
		log:          logger.NewLogger("ImportService"),
		engine:       e,
		out:          out,
	}
}

// Run imports the VMs one at a time in the order the engine lists them. The
// returned report is never nil and holds whatever was attempted before a
// failure.
func (s *ImportService) Run(ctx context.Context) (*domain.ImportReport, error) {
	report := domain.NewImportReport()

	exportSD, err := s.findStorageDomain(ctx, s.ExportDomain)
	if err != nil {
		return report, err
	}
	report.ExportDomain = *exportSD

	targetSD, err := s.findStorageDomain(ctx, s.TargetDomain)
	if err != nil {
		return report, err
	}
	report.TargetDomain = *targetSD

	cluster, err := s.findCluster(ctx, s.Cluster)
	if err != nil {
		return report, err
	}
	report.Cluster = *cluster

	var vms []domain.ExportedVM
	err = engine.Retry(ctx, s.Retries, func() error {
		var listErr error
		vms, listErr = s.engine.ListExportedVMs(ctx, exportSD.ID)
		return listErr
	})
	if err != nil {
		s.log.Error("Failed to list VMs on export domain %s: %v", exportSD.Name, err)
		return report, fmt.Errorf("failed to list VMs on storage domain %s: %w", exportSD.Name, err)
	}

	if len(vms) == 0 {
		s.log.Warn("No VMs found on export domain %s", exportSD.Name)
		fmt.Fprintln(s.out, NoVMsWarning)
		return report, nil
	}

	s.log.Info("Found %d VMs on export domain %s", len(vms), exportSD.Name)
	WriteExportedVMs(s.out, vms)

	if s.DryRun {
		for _, vm := range vms {
			report.Add(vm, domain.ImportStatusPlanned, nil)
		}
		s.log.Info("Dry run, %d VMs would be imported", len(vms))
		return report, nil
	}

	var errs error
	for i, vm := range vms {
		if err := ctx.Err(); err != nil {
			s.log.Warn("Import interrupted, skipping %d VMs: %v", len(vms)-i, err)
			for _, skipped := range vms[i:] {
				report.Add(skipped, domain.ImportStatusSkipped, nil)
			}
			return report, multierr.Append(errs, err)
		}

		err := s.importVM(ctx, exportSD, targetSD, cluster, vm)
		if err == nil {
			report.Add(vm, domain.ImportStatusImported, nil)
			continue
		}

		report.Add(vm, domain.ImportStatusFailed, err)
		errs = multierr.Append(errs, err)

		if !s.ContinueOnError {
			for _, skipped := range vms[i+1:] {
				report.Add(skipped, domain.ImportStatusSkipped, nil)
			}
			return report, errs
		}
	}

	s.log.Info("Import finished: %d imported, %d failed",
		report.Count(domain.ImportStatusImported), report.Count(domain.ImportStatusFailed))

	return report, errs
}

func (s *ImportService) importVM(ctx context.Context, exportSD, targetSD *domain.StorageDomain, cluster *domain.Cluster, vm domain.ExportedVM) error {
	log := s.log.With("vm", vm.ID)
	log.Info("Importing VM %s (%s) to %s on cluster %s", vm.Name, vm.ID, targetSD.Name, cluster.Name)

	err := s.engine.ImportVM(ctx, domain.ImportRequest{
		SourceDomainID:    exportSD.ID,
		VMID:              vm.ID,
		TargetDomainID:    targetSD.ID,
		ClusterID:         cluster.ID,
		Clone:             s.Clone,
		CollapseSnapshots: s.CollapseSnapshots,
		Exclusive:         s.Exclusive,
	})
	if err != nil {
		log.Error("Failed to import VM %s: %v", vm.ID, err)
		return fmt.Errorf("failed to import VM %s (%s): %w", vm.Name, vm.ID, err)
	}

	log.Info("VM %s imported", vm.ID)
	return nil
}

func (s *ImportService) findStorageDomain(ctx context.Context, name string) (*domain.StorageDomain, error) {
	var sd *domain.StorageDomain
	err := engine.Retry(ctx, s.Retries, func() error {
		var lookupErr error
		sd, lookupErr = s.engine.FindStorageDomain(ctx, name)
		return lookupErr
	})
	if err != nil {
		s.log.Error("Failed to find storage domain %s: %v", name, err)
		return nil, err
	}

	s.log.Debug("Storage domain %s: %s", name, sd.ID)
	return sd, nil
}

func (s *ImportService) findCluster(ctx context.Context, name string) (*domain.Cluster, error) {
	var cluster *domain.Cluster
	err := engine.Retry(ctx, s.Retries, func() error {
		var lookupErr error
		cluster, lookupErr = s.engine.FindCluster(ctx, name)
		return lookupErr
	})
	if err != nil {
		s.log.Error("Failed to find cluster %s: %v", name, err)
		return nil, err
	}

	s.log.Debug("Cluster %s: %s", name, cluster.ID)
	return cluster, nil
}
