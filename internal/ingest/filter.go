package ingest

import (
	"path/filepath"

	"github.com/joseph-ayodele/hr-extractor/constants"
)

// isHidden reports whether the last path element is a dot file or dot directory.
func isHidden(path string) bool {
	name := filepath.Base(path)
	return len(name) > 1 && name[0] == '.' && name != ".."
}

// isSupported reports whether path carries an extension the queue accepts.
func isSupported(path string) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := constants.AllowedExtensions[ext]
	return ok
}
