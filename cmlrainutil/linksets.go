package cmlrainutil

import (
	"bytes"
	"os"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// LinkSet is the decoded form of a link-sets file: a per-CML
// dataset.SelectionFlag, defaulting to dataset.SelectionBoth for any CML
// not explicitly listed.
type LinkSet struct {
	links map[int64]dataset.SelectionFlag
}

// linkSetFile is the on-disk TOML shape: a "default" table listing every
// known CML at flag 3, and an "overrides" table listing only the links
// whose flag differs from 3. Both tables use the CML ID's decimal string
// as key, since TOML keys are not numeric.
type linkSetFile struct {
	Default   map[string]int `toml:"default"`
	Overrides map[string]int `toml:"overrides"`
}

// NewLinkSet builds a LinkSet where every id in ids defaults to
// dataset.SelectionBoth.
func NewLinkSet(ids []int64) *LinkSet {
	ls := &LinkSet{links: make(map[int64]dataset.SelectionFlag, len(ids))}
	for _, id := range ids {
		ls.links[id] = dataset.SelectionBoth
	}
	return ls
}

// Flag returns the selection flag for id, defaulting to
// dataset.SelectionBoth if id was never registered.
func (ls *LinkSet) Flag(id int64) dataset.SelectionFlag {
	if f, ok := ls.links[id]; ok {
		return f
	}
	return dataset.SelectionBoth
}

// Set overrides the selection flag for id.
func (ls *LinkSet) Set(id int64, flag dataset.SelectionFlag) {
	ls.links[id] = flag
}

// AsMap returns the full id -> flag map, suitable for assemble.Assemble.
func (ls *LinkSet) AsMap() map[int64]dataset.SelectionFlag {
	out := make(map[int64]dataset.SelectionFlag, len(ls.links))
	for id, f := range ls.links {
		out[id] = f
	}
	return out
}

// LoadLinkSet reads and decodes a link-sets file. Every id in the
// "default" table is registered at dataset.SelectionBoth, then every id
// in "overrides" is applied on top; an id present only in "overrides"
// and not in "default" is registered too, mirroring how unmentioned
// links elsewhere in the file inherit the default flag of 3.
func LoadLinkSet(path string) (*LinkSet, error) {
	var f linkSetFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, err
	}
	ls := &LinkSet{links: make(map[int64]dataset.SelectionFlag, len(f.Default))}
	for k := range f.Default {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ls.links[id] = dataset.SelectionBoth
	}
	for k, v := range f.Overrides {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ls.links[id] = dataset.SelectionFlag(v)
	}
	return ls, nil
}

// Save persists ls to path as UTF-8 TOML: the "default" table lists
// every known CML at 3, "overrides" lists only the links whose flag
// differs from 3.
func (ls *LinkSet) Save(path string) error {
	f := linkSetFile{
		Default:   make(map[string]int, len(ls.links)),
		Overrides: make(map[string]int),
	}
	ids := make([]int64, 0, len(ls.links))
	for id := range ls.links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		key := strconv.FormatInt(id, 10)
		f.Default[key] = int(dataset.SelectionBoth)
		if flag := ls.links[id]; flag != dataset.SelectionBoth {
			f.Overrides[key] = int(flag)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
