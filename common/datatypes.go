package common

// Data type keys
const (
	TypeAwsS2L1C = "AWS_S2_L1C"
	TypeAster    = "ASTER"
	TypeMcd43    = "MCD43A1.006"
	TypeMcd15    = "MCD15A2H.006"
	TypeCams     = "CAMS"
	TypeCamsTiff = "CAMS_TIFF"
	TypeS2AEmu   = "S2A_EMU"
	TypeS2BEmu   = "S2B_EMU"
	TypeWVEmu    = "WV_EMU"
)
