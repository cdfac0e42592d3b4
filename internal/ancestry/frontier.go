// Package ancestry climbs a family tree breadth first from one person and
// records ancestors that match known slaveholders. Progress is checkpointed so
// a long climb can resume after a restart.
package ancestry

import "slices"

// Node is one frontier entry waiting to be visited.
type Node struct {
	FSID  string   `json:"fsId"`
	Depth int      `json:"depth"`
	Path  []string `json:"path"`
}

// Match is a visited ancestor that scored at or above the link band against an
// owner canonical.
type Match struct {
	FSID          string   `json:"fsId"`
	Name          string   `json:"name"`
	BirthYear     *int     `json:"birthYear,omitempty"`
	Depth         int      `json:"depth"`
	Path          []string `json:"path"`
	CanonicalID   int64    `json:"canonicalId"`
	CanonicalName string   `json:"canonicalName"`
	Score         float64  `json:"score"`
	Evidence      []string `json:"evidence,omitempty"`
}

// Frontier is the persisted state of a climb.
type Frontier struct {
	RootID  string          `json:"rootId"`
	Queue   []Node          `json:"queue"`
	Visited map[string]bool `json:"visited"`
	Matches []Match         `json:"matches"`
	Visits  int             `json:"visits"`
	Done    bool            `json:"done"`
}

// NewFrontier starts a climb at rootID.
func NewFrontier(rootID string) Frontier {
	return Frontier{
		RootID:  rootID,
		Queue:   []Node{{FSID: rootID, Path: []string{rootID}}},
		Visited: map[string]bool{rootID: true},
	}
}

// push enqueues id as a parent of from unless it was already seen.
func (f *Frontier) push(from Node, id string) bool {
	if id == "" || f.Visited[id] {
		return false
	}
	if f.Visited == nil {
		f.Visited = map[string]bool{}
	}
	f.Visited[id] = true
	f.Queue = append(f.Queue, Node{
		FSID:  id,
		Depth: from.Depth + 1,
		Path:  append(slices.Clone(from.Path), id),
	})
	return true
}
