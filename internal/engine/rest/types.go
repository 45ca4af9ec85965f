package rest

import (
	"encoding/json"
	"fmt"
	"strings"

	"ovirt-import/internal/domain"
)

// The engine's JSON representation names collections after their element
// type and encodes booleans as strings.

type ref struct {
	ID string `json:"id"`
}

type storageDomain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type storageDomainList struct {
	StorageDomains []storageDomain `json:"storage_domain"`
}

type cluster struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type clusterList struct {
	Clusters []cluster `json:"cluster"`
}

type vm struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type vmList struct {
	Vms []vm `json:"vm"`
}

type importAction struct {
	StorageDomain     *ref `json:"storage_domain"`
	Cluster           *ref `json:"cluster"`
	Vm                *ref `json:"vm"`
	Clone             bool `json:"clone,string"`
	CollapseSnapshots bool `json:"collapse_snapshots,string"`
	Exclusive         bool `json:"exclusive,string"`
}

type fault struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// FaultError is an error response from the engine.
type FaultError struct {
	StatusCode int
	Reason     string
	Detail     string
}

func (e *FaultError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("engine returned %d: %s %s", e.StatusCode, e.Reason, e.Detail)
}

func newFaultError(statusCode int, status string, body []byte) *FaultError {
	ret := &FaultError{StatusCode: statusCode}

	var f fault
	if err := json.Unmarshal(body, &f); err == nil && (f.Reason != "" || f.Detail != "") {
		ret.Reason = f.Reason
		ret.Detail = f.Detail
		return ret
	}

	ret.Reason = status
	ret.Detail = strings.TrimSpace(string(body))
	return ret
}

func (sd storageDomain) toDomain() domain.StorageDomain {
	return domain.StorageDomain{
		ID:   sd.ID,
		Name: sd.Name,
		Type: domain.StorageDomainType(sd.Type),
	}
}

func (c cluster) toDomain() domain.Cluster {
	return domain.Cluster{
		ID:   c.ID,
		Name: c.Name,
	}
}

func (v vm) toDomain() domain.ExportedVM {
	status := domain.VmStatus(v.Status)
	if status == "" {
		status = domain.VmStatusUnknown
	}

	return domain.ExportedVM{
		ID:     v.ID,
		Name:   v.Name,
		Status: status,
	}
}
