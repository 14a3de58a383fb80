// Package mastermix groups slide rows that share an antibody combination into
// master mixes and renders the bench protocols used to prepare them.
package mastermix

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// None marks an empty antibody or channel cell.
const None = "None"

// PrimaryMix is a set of primary antibodies prepared once for several slides.
type PrimaryMix struct {
	ID         string   `json:"id" yaml:"id"`
	SlideCount int      `json:"slide_count" yaml:"slide_count"`
	Antibodies []string `json:"antibodies" yaml:"antibodies"`
}

// SecondaryMix is a channel to secondary assignment shared by several slides.
type SecondaryMix struct {
	ID               string            `json:"id" yaml:"id"`
	SlideCount       int               `json:"slide_count" yaml:"slide_count"`
	ChannelSecondary map[string]string `json:"channel_secondary" yaml:"channel_secondary"`
}

func empty(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == None
}

func canonicalSet(row []string) []string {
	out := make([]string, 0, len(row))
	for _, v := range row {
		if empty(v) {
			continue
		}
		out = append(out, strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}

// AssignPrimaryMixes gives every slide row a mix ID. Rows holding the same
// antibodies, in any order, share an ID; IDs are numbered MM1, MM2, ... in
// order of first appearance. Rows without antibodies get "".
func AssignPrimaryMixes(rows [][]string) []string {
	ids := make([]string, len(rows))
	seen := make(map[string]string)
	for i, row := range rows {
		set := canonicalSet(row)
		if len(set) == 0 {
			continue
		}
		key := strings.Join(set, "\x00")
		id, ok := seen[key]
		if !ok {
			id = "MM" + strconv.Itoa(len(seen)+1)
			seen[key] = id
		}
		ids[i] = id
	}
	return ids
}

// CollectPrimaryMixes folds rows and their assigned IDs into mix definitions
// ordered by mix number, with each mix's antibodies sorted and deduplicated.
func CollectPrimaryMixes(rows [][]string, ids []string) []PrimaryMix {
	byID := make(map[string]*PrimaryMix)
	names := make(map[string]map[string]struct{})
	for i, id := range ids {
		if id == "" || i >= len(rows) {
			continue
		}
		mix, ok := byID[id]
		if !ok {
			mix = &PrimaryMix{ID: id}
			byID[id] = mix
			names[id] = make(map[string]struct{})
		}
		mix.SlideCount++
		for _, ab := range canonicalSet(rows[i]) {
			names[id][ab] = struct{}{}
		}
	}

	out := make([]PrimaryMix, 0, len(byID))
	for id, mix := range byID {
		for ab := range names[id] {
			mix.Antibodies = append(mix.Antibodies, ab)
		}
		sort.Strings(mix.Antibodies)
		out = append(out, *mix)
	}
	sort.Slice(out, func(i, j int) bool { return mixLess(out[i].ID, out[j].ID) })
	return out
}

// GroupSecondaryMixes groups slide rows by the secondary chosen for each
// channel. Mix IDs SMM1, SMM2, ... follow the sorted order of the channel
// tuples. The second result holds the mix ID of every row.
func GroupSecondaryMixes(rows []map[string]string, channels []string) ([]SecondaryMix, []string) {
	keys := make([]string, len(rows))
	counts := make(map[string]int)
	tuples := make(map[string][]string)
	for i, row := range rows {
		tuple := make([]string, len(channels))
		for c, channel := range channels {
			v := strings.TrimSpace(row[channel])
			if v == "" {
				v = None
			}
			tuple[c] = v
		}
		key := strings.Join(tuple, "\x00")
		keys[i] = key
		counts[key]++
		tuples[key] = tuple
	}

	ordered := make([]string, 0, len(counts))
	for key := range counts {
		ordered = append(ordered, key)
	}
	sort.Slice(ordered, func(i, j int) bool { return tupleLess(tuples[ordered[i]], tuples[ordered[j]]) })

	mixes := make([]SecondaryMix, 0, len(ordered))
	idOf := make(map[string]string, len(ordered))
	for n, key := range ordered {
		id := "SMM" + strconv.Itoa(n+1)
		idOf[key] = id
		assigned := make(map[string]string, len(channels))
		for c, channel := range channels {
			if name := tuples[key][c]; !empty(name) {
				assigned[channel] = name
			}
		}
		mixes = append(mixes, SecondaryMix{ID: id, SlideCount: counts[key], ChannelSecondary: assigned})
	}

	ids := make([]string, len(rows))
	for i, key := range keys {
		ids[i] = idOf[key]
	}
	return mixes, ids
}

func tupleLess(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// mixLess orders IDs such as MM2 before MM10.
func mixLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimLeft(a, "SM"))
	nb, errB := strconv.Atoi(strings.TrimLeft(b, "SM"))
	if errA != nil || errB != nil || na == nb {
		return a < b
	}
	return na < nb
}

func (m PrimaryMix) String() string {
	return fmt.Sprintf("%s (%d slides): %s", m.ID, m.SlideCount, strings.Join(m.Antibodies, ", "))
}
