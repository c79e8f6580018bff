package fetcher

import (
	"context"
	"fmt"
)

// Fetcher is the interface of a remote data set retrieval service
type Fetcher interface {
	// Fetch copies the data set to the given localDir
	// identifier is for example 29/S/QB/2017/9/4/0 or MCD43A1.A2017250.h17v05.006.2017258075956.hdf
	// localDir is the directory where the data set will be stored
	Fetch(ctx context.Context, identifier, localDir string) error

	// Name of the fetcher
	Name() string
}

// Lister is implemented by fetchers able to enumerate the identifiers of
// their remote archive
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// ErrDataSetNotFound is an error returned when a data set is not found or available
type ErrDataSetNotFound struct {
	DataSet string
}

func (e ErrDataSetNotFound) Error() string {
	return fmt.Sprintf("Data set not found or unavailable: %s", e.DataSet)
}
