package catalog

import (
	"context"
	"fmt"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
)

// Reconcile aligns the provider with the result of a file system scan: every
// scanned data set absent from the catalog is registered, every catalog
// record absent from the scan is removed. Records of data types the provider
// does not support are left untouched on both sides, and a record whose scan
// failed (scanFaults) is never removed on the strength of that failure.
func Reconcile(ctx context.Context, provider WritableMetaInfoProvider, scanned []common.DataSetMetaInfo, scanFaults []Fault) (UpdateReport, error) {
	report := UpdateReport{Faults: scanFaults}

	existing, err := provider.All(ctx)
	if err != nil {
		return report, fmt.Errorf("Reconcile.%w", err)
	}
	known := service.StringSet{}
	for _, info := range existing {
		if provider.Provides(info.DataType) {
			known.Push(info.Identifier)
		}
	}
	faulted := service.StringSet{}
	for _, fault := range scanFaults {
		faulted.Push(fault.Identifier)
	}

	found := service.StringSet{}
	var add []common.DataSetMetaInfo
	for _, info := range scanned {
		if !provider.Provides(info.DataType) {
			continue
		}
		found.Push(info.Identifier)
		if known.Exists(info.Identifier) {
			continue
		}
		if err := Validate(info); err != nil {
			report.Faults = append(report.Faults, Fault{Identifier: info.Identifier, Reason: err.Error()})
			continue
		}
		add = append(add, info)
	}

	var remove []string
	var removed []common.DataSetMetaInfo
	for _, info := range existing {
		if !provider.Provides(info.DataType) {
			continue
		}
		if found.Exists(info.Identifier) || faulted.Exists(info.Identifier) {
			continue
		}
		remove = append(remove, info.Identifier)
		removed = append(removed, info)
	}

	if len(add) > 0 || len(remove) > 0 {
		if err := provider.Apply(ctx, add, remove); err != nil {
			return report, fmt.Errorf("Reconcile.%w", err)
		}
	}
	report.Added = add
	report.Removed = removed
	return report, nil
}
