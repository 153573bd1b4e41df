package tagging

import "strings"

var unsafeFileChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
	`\`, "_", "|", "_", "?", "_", "*", "_",
)

// SafeFileName derives a filesystem-safe file name from a track title.
// The same title always yields the same name.
func SafeFileName(name, ext string) string {
	safe := strings.Join(strings.Fields(unsafeFileChars.Replace(name)), " ")
	if safe == "" || safe == "." || safe == ".." {
		safe = "track"
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return safe
	}
	return safe + "." + ext
}
