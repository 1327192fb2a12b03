package fileutil

import (
	"path"
	"strings"
)

var unsafeNameChars = strings.NewReplacer(
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SafeName reduces a name received from elsewhere to a single path element
// that is safe to create in the working directory. Directory components are
// dropped and names that resolve to "." or ".." yield "".
func SafeName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	name = strings.TrimSpace(unsafeNameChars.Replace(name))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
