package core

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var spacesRegex = regexp.MustCompile(`\s+`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CollapseSpaces cleans `s` and replaces every inner whitespace run with a single space.
func CollapseSpaces(s string, lower ...bool) string {
	return spacesRegex.ReplaceAllString(CleanString(s, lower...), " ")
}

// Getwd walks up from the working directory until it finds the module root (the dir holding go.mod).
// go-test changes the working directory to the package being tested, which breaks relative paths.
// Falls back to the working directory when no go.mod is found (e.g. a deployed binary).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
