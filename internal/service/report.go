package service

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"ovirt-import/internal/domain"
)

func WriteExportedVMs(out io.Writer, vms []domain.ExportedVM) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "ID", "Status"})

	for _, vm := range vms {
		table.Append([]string{
			vm.Name,
			vm.ID,
			string(vm.Status),
		})
	}

	table.Render()
}

func WriteImportReport(out io.Writer, report *domain.ImportReport) {
	if len(report.Results) == 0 {
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "ID", "Result", "Error"})

	for _, result := range report.Results {
		errText := ""
		if result.Err != nil {
			errText = result.Err.Error()
		}

		table.Append([]string{
			result.VM.Name,
			result.VM.ID,
			string(result.Status),
			errText,
		})
	}

	table.Render()
}
