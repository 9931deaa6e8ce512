// Package catalog loads the mission board definition from missions.yaml
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPriority sorts networks without an explicit priority last
const DefaultPriority = 999

// ErrInvalidCatalog is returned when the document lacks the required structure
var ErrInvalidCatalog = errors.New("invalid mission catalog")

// LoggingRules controls which evidence a completion needs
type LoggingRules struct {
	RequireTxHash      *bool `yaml:"requireTxHash,omitempty"`
	RequireExplorerURL *bool `yaml:"requireExplorerUrl,omitempty"`
	AllowMultipleTxs   *bool `yaml:"allowMultipleTxs,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// TxHashRequired defaults to true
func (l LoggingRules) TxHashRequired() bool {
	return l.RequireTxHash == nil || *l.RequireTxHash
}

// ExplorerURLRequired defaults to true
func (l LoggingRules) ExplorerURLRequired() bool {
	return l.RequireExplorerURL == nil || *l.RequireExplorerURL
}

// MultipleTxsAllowed defaults to false
func (l LoggingRules) MultipleTxsAllowed() bool {
	return l.AllowMultipleTxs != nil && *l.AllowMultipleTxs
}

// Meta holds optional scheduling hints
type Meta struct {
	RecommendedFrequency string `yaml:"recommendedFrequency,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// Mission is one task on a network
type Mission struct {
	ID                 string       `yaml:"id"`
	Label              string       `yaml:"label"`
	Description        string       `yaml:"description,omitempty"`
	Goal               string       `yaml:"goal,omitempty"`
	Difficulty         string       `yaml:"difficulty,omitempty"`
	SuggestedProtocols []string     `yaml:"suggestedProtocols,omitempty"`
	Steps              []string     `yaml:"steps,omitempty"`
	Logging            LoggingRules `yaml:"logging,omitempty"`
	Meta               Meta         `yaml:"meta,omitempty"`

	// Extra keeps fields this version does not model
	Extra map[string]any `yaml:",inline"`
}

// Network groups the missions of one chain
type Network struct {
	Key      string    `yaml:"key"`
	Label    string    `yaml:"label"`
	Priority *int      `yaml:"priority,omitempty"`
	Explorer string    `yaml:"explorer,omitempty"`
	Missions []Mission `yaml:"missions"`

	Extra map[string]any `yaml:",inline"`
}

// SortPriority returns the priority used for ordering
func (n Network) SortPriority() int {
	if n.Priority == nil {
		return DefaultPriority
	}
	return *n.Priority
}

// Catalog is the whole mission board
type Catalog struct {
	Version  int       `yaml:"version"`
	Networks []Network `yaml:"networks"`

	Extra map[string]any `yaml:",inline"`
}

// Ref locates a mission inside the catalog
type Ref struct {
	Network *Network
	Mission *Mission
}

// Load reads and parses the catalog at path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mission catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document and orders its networks by priority
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	sort.SliceStable(c.Networks, func(i, j int) bool {
		return c.Networks[i].SortPriority() < c.Networks[j].SortPriority()
	})
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.Networks == nil {
		return fmt.Errorf("%w: networks array is required", ErrInvalidCatalog)
	}

	seen := make(map[string]string)
	for i, n := range c.Networks {
		if n.Key == "" {
			return fmt.Errorf("%w: network %d has no key", ErrInvalidCatalog, i)
		}
		for j, m := range n.Missions {
			if m.ID == "" {
				return fmt.Errorf("%w: mission %d of network %s has no id", ErrInvalidCatalog, j, n.Key)
			}
			if other, dup := seen[m.ID]; dup {
				return fmt.Errorf("%w: mission id %s used by networks %s and %s", ErrInvalidCatalog, m.ID, other, n.Key)
			}
			seen[m.ID] = n.Key
		}
	}
	return nil
}

// Lookup finds a mission by id
func (c *Catalog) Lookup(missionID string) (Ref, bool) {
	for i := range c.Networks {
		n := &c.Networks[i]
		for j := range n.Missions {
			if n.Missions[j].ID == missionID {
				return Ref{Network: n, Mission: &n.Missions[j]}, true
			}
		}
	}
	return Ref{}, false
}

// MissionCount returns the number of missions across all networks
func (c *Catalog) MissionCount() int {
	total := 0
	for _, n := range c.Networks {
		total += len(n.Missions)
	}
	return total
}

// ErrEvidence is returned when a completion lacks what the mission requires
var ErrEvidence = errors.New("completion evidence rejected")

// CheckEvidence validates a completion against the mission's logging rules
// and returns the normalized transaction hash. Missions that allow multiple
// transactions take a comma separated list.
func (m Mission) CheckEvidence(txHash, explorerURL string) (string, error) {
	hashes := make([]string, 0, 1)
	for _, h := range strings.Split(txHash, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, h)
		}
	}

	if len(hashes) == 0 && m.Logging.TxHashRequired() {
		return "", fmt.Errorf("%w: mission %s requires a transaction hash", ErrEvidence, m.ID)
	}
	if len(hashes) > 1 && !m.Logging.MultipleTxsAllowed() {
		return "", fmt.Errorf("%w: mission %s takes a single transaction hash", ErrEvidence, m.ID)
	}
	if strings.TrimSpace(explorerURL) == "" && m.Logging.ExplorerURLRequired() {
		return "", fmt.Errorf("%w: mission %s requires an explorer url", ErrEvidence, m.ID)
	}
	return strings.Join(hashes, ","), nil
}
