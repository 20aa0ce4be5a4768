package dag

import (
	"encoding/json"
	"fmt"
	"os"
)

// planFile is the on-disk shape of a plan graph: a flat list of node
// definitions, each naming its dependencies by id.
type planFile struct {
	Nodes []NodeDef `json:"nodes"`
}

// LoadPlan reads a plan graph from path and builds a Graph from it.
func LoadPlan(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dag: read plan %s: %w", path, err)
	}
	var pf planFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("dag: parse plan %s: %w", path, err)
	}
	return NewGraph(pf.Nodes)
}
