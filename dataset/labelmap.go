package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrLabelMapMissing = errors.New("label map not found")
	ErrLabelMapInvalid = errors.New("label map invalid")
	ErrUnknownLabel    = errors.New("unknown label")
)

// Label is one label map entry.
type Label struct {
	ID   int64
	Name string
}

// LabelMap maps category names to stable ids. It is immutable once loaded.
type LabelMap struct {
	ids    map[string]int64
	labels []Label
}

// NewLabelMap builds a label map from name → id pairs. Ids must be positive
// and unique.
func NewLabelMap(m map[string]int64) (*LabelMap, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: no labels", ErrLabelMapInvalid)
	}

	lm := &LabelMap{ids: make(map[string]int64, len(m))}
	seen := make(map[int64]string, len(m))
	for name, id := range m {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty label name", ErrLabelMapInvalid)
		}
		if id <= 0 {
			return nil, fmt.Errorf("%w: label %q has non-positive id %d", ErrLabelMapInvalid, name, id)
		}
		if other, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: id %d used by both %q and %q", ErrLabelMapInvalid, id, other, name)
		}
		seen[id] = name
		lm.ids[name] = id
		lm.labels = append(lm.labels, Label{ID: id, Name: name})
	}

	sort.Slice(lm.labels, func(i, j int) bool { return lm.labels[i].ID < lm.labels[j].ID })
	return lm, nil
}

// LoadLabelMap reads a JSON object of the form {"healthy": 1, "scab": 2}.
func LoadLabelMap(fs afero.Fs, path string) (*LabelMap, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLabelMapMissing, path)
		}
		return nil, fmt.Errorf("read label map %s: %w", path, err)
	}

	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLabelMapInvalid, path, err)
	}

	lm, err := NewLabelMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lm, nil
}

// Lookup resolves a CSV label to its category id. Names are matched first;
// a label that is the decimal form of a known id is accepted as that id.
func (lm *LabelMap) Lookup(label string) (int64, error) {
	label = strings.TrimSpace(label)
	if id, ok := lm.ids[label]; ok {
		return id, nil
	}

	if n, err := strconv.ParseInt(label, 10, 64); err == nil {
		for _, l := range lm.labels {
			if l.ID == n {
				return n, nil
			}
		}
	}

	return 0, fmt.Errorf("%w %q", ErrUnknownLabel, label)
}

// Labels returns the entries ordered by id.
func (lm *LabelMap) Labels() []Label {
	ret := make([]Label, len(lm.labels))
	copy(ret, lm.labels)
	return ret
}

func (lm *LabelMap) Len() int {
	return len(lm.labels)
}
