package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
)

// Cast is the speaker roster accumulated across runs.
type Cast struct {
	Version int          `json:"version"`
	Members []CastMember `json:"members"`
}

// CastMember is one speaker label and where it was heard.
type CastMember struct {
	Label     string `json:"label"`
	Lines     int    `json:"lines"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

// LoadCast reads a cast file. A missing file yields an empty roster.
func LoadCast(path string) (Cast, error) {
	if path == "" {
		return Cast{}, errors.New("LoadCast: path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Cast{Version: 1, Members: []CastMember{}}, nil
		}
		return Cast{}, fmt.Errorf("LoadCast: read file: %w", err)
	}
	var c Cast
	if err := json.Unmarshal(b, &c); err != nil {
		return Cast{}, fmt.Errorf("LoadCast: unmarshal: %w", err)
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Members == nil {
		c.Members = []CastMember{}
	}
	return c, nil
}

// SaveCast writes the roster atomically, most talkative speakers first.
func SaveCast(path string, c Cast) error {
	if path == "" {
		return errors.New("SaveCast: path is empty")
	}
	sortCast(c.Members)
	if err := fileutils.WriteJSONFileAtomic(path, c, true); err != nil {
		return fmt.Errorf("SaveCast: %w", err)
	}
	return nil
}

// MergeCast counts every speaker attribution in entries into c and returns the labels touched,
// in first-seen order. Labels match case-insensitively; the first spelling seen is kept.
// Failed entries carry no speakers.
func MergeCast(c *Cast, entries []Entry) []string {
	if c == nil {
		return nil
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Members == nil {
		c.Members = []CastMember{}
	}

	index := make(map[string]int, len(c.Members))
	for i := range c.Members {
		if key := castKey(c.Members[i].Label); key != "" {
			index[key] = i
		}
	}

	var touched []string
	seen := map[string]struct{}{}
	for _, e := range entries {
		if e.Failed {
			continue
		}
		for _, r := range e.Records {
			for _, label := range r.Speakers() {
				key := castKey(label)
				if key == "" {
					continue
				}
				if i, ok := index[key]; ok {
					m := &c.Members[i]
					m.Lines++
					if m.FirstSeen == "" {
						m.FirstSeen = e.Key
					}
					m.LastSeen = e.Key
				} else {
					c.Members = append(c.Members, CastMember{
						Label:     strings.TrimSpace(label),
						Lines:     1,
						FirstSeen: e.Key,
						LastSeen:  e.Key,
					})
					index[key] = len(c.Members) - 1
				}
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					touched = append(touched, c.Members[index[key]].Label)
				}
			}
		}
	}
	return touched
}

func castKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func sortCast(members []CastMember) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Lines != members[j].Lines {
			return members[i].Lines > members[j].Lines
		}
		return castKey(members[i].Label) < castKey(members[j].Label)
	})
}
