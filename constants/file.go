package constants

import "strings"

// Media types accepted at the upload boundary.
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypePDF  = "application/pdf"
)

// AllowedExtensions holds the file extensions picked up by directory ingest and the inbox watcher.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

var extToMediaType = map[string]string{
	"png":  MediaTypePNG,
	"jpg":  MediaTypeJPEG,
	"jpeg": MediaTypeJPEG,
	"pdf":  MediaTypePDF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt maps a file extension to its accepted media type, or "" if unsupported.
func MediaTypeForExt(ext string) string {
	return extToMediaType[NormalizeExt(ext)]
}

// CanonicalMediaType normalizes a declared media type and reports whether it is accepted.
// "image/jpg" and parameters such as "; charset=binary" are tolerated.
func CanonicalMediaType(mt string) (string, bool) {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case MediaTypePNG, MediaTypePDF, MediaTypeJPEG:
		return mt, true
	case "image/jpg", "image/pjpeg":
		return MediaTypeJPEG, true
	default:
		return "", false
	}
}

// IsImage reports whether the canonical media type is a raster image.
func IsImage(mt string) bool {
	return mt == MediaTypePNG || mt == MediaTypeJPEG
}

// Export defaults.
const (
	ExportSheetName = "Dados Funcionários"
	ExportFilename  = "Extracao_RH.xlsx"
)
