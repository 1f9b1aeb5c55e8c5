package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// SanitizeName replaces characters unsafe for filesystem paths
// Allows alphanumeric, dots, and hyphens. Replaces everything else with underscore.
func SanitizeName(name string) string {
	return unsafePathChars.ReplaceAllString(name, "_")
}

// ReportPath generates a consistent file path for a brand report
// Format: {baseDir}/{domain}_{YYYYMMDD}_{HHMMSS}.md
func ReportPath(baseDir, domain string, at time.Time) string {
	name := fmt.Sprintf("%s_%s.md", SanitizeName(domain), at.Format("20060102_150405"))
	return filepath.Join(baseDir, name)
}

// WriteReport writes content to a report file, creating baseDir as needed.
func WriteReport(baseDir, domain string, at time.Time, content string) (string, error) {
	if err := EnsureDir(baseDir); err != nil {
		return "", err
	}
	path := ReportPath(baseDir, domain, at)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// EnsureDir creates a directory and all parent directories if they don't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
