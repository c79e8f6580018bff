package extraction

import (
	"path/filepath"
	"strings"

	"github.com/eoarchive/data-access/common"
)

// Emulator extracts records from forward-model emulator archives. Emulators
// are static lookup tables, so the record is global and carries no sensing
// time. The data type is read off the file name prefix (S2A_EMU_*.zip).
type Emulator struct {
	dataType string
}

func NewS2AEmu() Emulator {
	return Emulator{dataType: common.TypeS2AEmu}
}

func NewS2BEmu() Emulator {
	return Emulator{dataType: common.TypeS2BEmu}
}

func NewWVEmu() Emulator {
	return Emulator{dataType: common.TypeWVEmu}
}

func (e Emulator) Name() string {
	return e.dataType
}

func (e Emulator) Matches(path string) bool {
	return strings.HasPrefix(filepath.Base(path), e.dataType)
}

func (e Emulator) Extract(path string) (common.DataSetMetaInfo, error) {
	if !e.Matches(path) {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: "not a " + e.dataType + " archive"}
	}
	return common.DataSetMetaInfo{
		Coverage:   common.Global,
		DataType:   e.dataType,
		Identifier: path,
	}, nil
}
