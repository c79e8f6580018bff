package common

import (
	"os"
	"strings"
)

//go:generate go run github.com/dmarkham/enumer -json -sql -type Kind -trimprefix Kind

// Kind tells a consumer what a resolved FileRef url points to.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindArchive
)

// KindOf guesses the kind of a local path. Remote urls that were never
// materialized locally stay KindUnknown.
func KindOf(path string) Kind {
	if fi, err := os.Stat(path); err == nil {
		if fi.IsDir() {
			return KindDirectory
		}
		switch {
		case strings.HasSuffix(path, ".zip"), strings.HasSuffix(path, ".tar"), strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
			return KindArchive
		}
		return KindFile
	}
	return KindUnknown
}
