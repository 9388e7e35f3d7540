package gh

import (
	"path"
	"strings"
)

// Extensions worth scanning for leaked material. Anything not listed in
// either set defaults to scannable, since missing a secret costs more than
// scanning a few odd files.
var textExtensions = map[string]bool{
	".py": true, ".pyw": true, ".pyx": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".cjs": true,
	".java": true, ".kt": true, ".kts": true, ".scala": true,
	".c": true, ".cpp": true, ".cc": true, ".cxx": true, ".h": true, ".hpp": true,
	".cs": true, ".vb": true, ".fs": true,
	".go": true, ".rs": true,
	".rb": true, ".rake": true, ".gemspec": true,
	".php": true, ".phtml": true,
	".swift": true, ".m": true, ".mm": true, ".r": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".sass": true, ".less": true,
	".vue": true, ".svelte": true, ".astro": true,
	".json": true, ".yaml": true, ".yml": true, ".xml": true, ".toml": true,
	".ini": true, ".conf": true, ".config": true, ".env": true, ".properties": true, ".cfg": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true, ".ps1": true, ".bat": true, ".cmd": true,
	".md": true, ".markdown": true, ".txt": true, ".rst": true, ".adoc": true,
	".sql": true, ".pgsql": true, ".mysql": true,
	".graphql": true, ".gql": true,
	".tf": true, ".tfvars": true,
	".dockerfile": true,
}

var textBasenames = map[string]bool{
	"dockerfile": true, "makefile": true, "rakefile": true, "gemfile": true,
	"readme": true, "license": true, "changelog": true, "contributing": true,
	"jenkinsfile": true, "vagrantfile": true, "procfile": true,
}

var binaryExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".svg": true, ".ico": true, ".webp": true,
	".mp4": true, ".avi": true, ".mov": true, ".webm": true,
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	".pyc": true, ".class": true, ".o": true, ".a": true, ".jar": true, ".war": true,
}

// IsTextFile reports whether the file should be scanned.
func IsTextFile(filename string) bool {
	lower := strings.ToLower(filename)
	ext := path.Ext(lower)

	if textExtensions[ext] {
		return true
	}
	if textBasenames[path.Base(lower)] {
		return true
	}
	if binaryExtensions[ext] {
		return false
	}
	return true
}
