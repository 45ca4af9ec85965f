package domain

import (
	"errors"
)

var (
	ErrStorageDomainNotFound = errors.New("storage domain not found")
	ErrClusterNotFound       = errors.New("cluster not found")
)

type StorageDomainType string

const (
	StorageDomainTypeData   StorageDomainType = "data"
	StorageDomainTypeExport StorageDomainType = "export"
	StorageDomainTypeISO    StorageDomainType = "iso"
	StorageDomainTypeImage  StorageDomainType = "image"
)

type VmStatus string

const (
	VmStatusDown          VmStatus = "down"
	VmStatusUp            VmStatus = "up"
	VmStatusImageLocked   VmStatus = "image_locked"
	VmStatusNotResponding VmStatus = "not_responding"
	VmStatusUnknown       VmStatus = "unknown"
)

type ImportStatus string

const (
	ImportStatusImported ImportStatus = "imported"
	ImportStatusFailed   ImportStatus = "failed"
	ImportStatusSkipped  ImportStatus = "skipped"
	ImportStatusPlanned  ImportStatus = "planned"
)

type StorageDomain struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Type StorageDomainType `json:"type,omitempty"`
}

type Cluster struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ExportedVM struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Status VmStatus `json:"status,omitempty"`
}

// ImportRequest names the VM to take from SourceDomainID and where it lands.
type ImportRequest struct {
	SourceDomainID    string
	VMID              string
	TargetDomainID    string
	ClusterID         string
	Clone             bool
	CollapseSnapshots bool
	Exclusive         bool
}

type ImportResult struct {
	VM     ExportedVM
	Status ImportStatus
	Err    error
}

type ImportReport struct {
	ExportDomain StorageDomain
	TargetDomain StorageDomain
	Cluster      Cluster
	Results      []ImportResult
}

func NewImportReport() *ImportReport {
	return &ImportReport{
		Results: make([]ImportResult, 0),
	}
}

func (r *ImportReport) Add(vm ExportedVM, status ImportStatus, err error) {
	r.Results = append(r.Results, ImportResult{
		VM:     vm,
		Status: status,
		Err:    err,
	})
}

func (r *ImportReport) Count(status ImportStatus) int {
	ret := 0
	for _, result := range r.Results {
		if result.Status == status {
			ret++
		}
	}
	return ret
}
