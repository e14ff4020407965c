package convert

import (
	"fmt"
	"sort"
)

// Warning is a recoverable problem: the offending row or image was skipped
// and the run went on.
type Warning struct {
	Subcategory string
	Split       string
	File        string
	Line        int
	Err         error
}

func (w Warning) Error() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s/%s: %s:%d: %v", w.Subcategory, w.Split, w.File, w.Line, w.Err)
	}
	return fmt.Sprintf("%s/%s: %s: %v", w.Subcategory, w.Split, w.File, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Output describes one written document.
type Output struct {
	Path        string
	Subcategory string // empty for merged documents
	Split       string
	Images      int
	Annotations int
}

type WarningCount struct {
	Subcategory string
	Split       string
	Count       int
}

type Report struct {
	Outputs  []Output
	Warnings []Warning
}

// WarningCounts groups warnings by subcategory and split, sorted.
func (r *Report) WarningCounts() []WarningCount {
	idx := make(map[[2]string]int)
	var ret []WarningCount
	for _, w := range r.Warnings {
		k := [2]string{w.Subcategory, w.Split}
		i, ok := idx[k]
		if !ok {
			i = len(ret)
			idx[k] = i
			ret = append(ret, WarningCount{Subcategory: w.Subcategory, Split: w.Split})
		}
		ret[i].Count++
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Subcategory != ret[j].Subcategory {
			return ret[i].Subcategory < ret[j].Subcategory
		}
		return ret[i].Split < ret[j].Split
	})
	return ret
}
