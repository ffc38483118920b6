package scan

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/sitesync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

const IgnoreFileName = ".sitesyncignore"

var defaultIgnoreLines = []string{
	// sitesync
	".sitesync/",
	IgnoreFileName,
	// vcs
	".git",
	".hg",
	".svn",
	// secrets
	".env",
	".env.*",
	// editors / OS
	".vscode",
	".idea",
	"*.swp",
	"*.tmp",
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList matches site-relative paths against the defaults plus the root's .sitesyncignore.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

// Load compiles the ignore rules. A missing ignore file is not an error.
func (l *IgnoreList) Load() error {
	lines := append([]string{}, defaultIgnoreLines...)

	ignorePath := filepath.Join(l.baseDir, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			return err
		}
		defer file.Close()

		rules := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
			rules++
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
	return nil
}

// ShouldIgnore reports whether a slash-separated path relative to the site root is excluded.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	if l.ignore == nil {
		return false
	}
	return l.ignore.MatchesPath(strings.TrimPrefix(relPath, "/"))
}
