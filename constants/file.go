package constants

import "strings"

// Input formats. Spreadsheet and delimited-text inputs bypass OCR entirely
// and go through direct column detection.
const (
	PDF         = "PDF"
	IMAGE       = "IMAGE"
	SPREADSHEET = "SPREADSHEET"
	TEXT        = "TEXT"
)

// FileTypes holds the allowed values for a document's input format.
var FileTypes = []string{PDF, IMAGE, SPREADSHEET, TEXT}

// AllowedExtensions holds the default allowed file extensions for inbound ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"xlsx": {},
	"csv":  {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to its input format, or "" when
// the extension is not supported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff":
		return IMAGE
	case "xlsx":
		return SPREADSHEET
	case "csv", "txt":
		return TEXT
	}
	return ""
}
