package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ReadSplit loads the image stems listed in a split file, one per line.
// Blank lines and repeated stems are dropped; a trailing image extension is
// stripped. found is false when the file does not exist.
func ReadSplit(fs afero.Fs, path string) (stems []string, found bool, err error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read split file %s: %w", path, err)
	}

	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if IsImageFile(line) {
			line = strings.TrimSuffix(line, filepath.Ext(line))
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		stems = append(stems, line)
	}
	if err = sc.Err(); err != nil {
		return nil, false, fmt.Errorf("scan split file %s: %w", path, err)
	}

	return stems, true, nil
}
