package sdk

import (
	ovirtsdk "github.com/ovirt/go-ovirt"

	"ovirt-import/internal/domain"
)

func toStorageDomain(sd *ovirtsdk.StorageDomain) domain.StorageDomain {
	ret := domain.StorageDomain{}

	if id, ok := sd.Id(); ok {
		ret.ID = id
	}
	if name, ok := sd.Name(); ok {
		ret.Name = name
	}
	if sdType, ok := sd.Type(); ok {
		ret.Type = domain.StorageDomainType(sdType)
	}

	return ret
}

func toCluster(cluster *ovirtsdk.Cluster) domain.Cluster {
	ret := domain.Cluster{}

	if id, ok := cluster.Id(); ok {
		ret.ID = id
	}
	if name, ok := cluster.Name(); ok {
		ret.Name = name
	}

	return ret
}

func toExportedVM(vm *ovirtsdk.Vm) domain.ExportedVM {
	ret := domain.ExportedVM{
		Status: domain.VmStatusUnknown,
	}

	if id, ok := vm.Id(); ok {
		ret.ID = id
	}
	if name, ok := vm.Name(); ok {
		ret.Name = name
	}
	if status, ok := vm.Status(); ok {
		ret.Status = domain.VmStatus(status)
	}

	return ret
}
