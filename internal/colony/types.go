// Package colony provides the simulation core: the node graph, the pooled
// nutrient/defense economy, the infection state machine and the breadth-first
// routing used for resource-flow hints.
package colony

import (
	"fmt"
	"strings"
)

// NodeType is the closed set of structures a colony can grow.
type NodeType uint8

const (
	Nucleus   NodeType = iota // Permanent root; its transformation ends the run
	Extractor                 // Pulls nutrients from the substrate
	Storage                   // Raises the global nutrient capacity
	Defense                   // Generates the defense resource
)

// nodeSpec holds the fixed per-type constants.
type nodeSpec struct {
	name     string
	health   float64 // base health
	capacity float64 // nutrient storage contributed to the global pool
	cost     float64 // nutrients deducted on construction
	nutrient float64 // base extraction rate
	defense  float64 // base defense-generation rate
}

var nodeSpecs = [...]nodeSpec{
	Nucleus:   {name: "nucleus", health: 100, capacity: 100},
	Extractor: {name: "extractor", health: 150, cost: 75, nutrient: 5},
	Storage:   {name: "storage", health: 75, capacity: 50, cost: 100},
	Defense:   {name: "defense", health: 60, cost: 100, defense: 5},
}

// Valid reports whether t is one of the four known types.
func (t NodeType) Valid() bool { return int(t) < len(nodeSpecs) }

func (t NodeType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("NodeType(%d)", uint8(t))
	}
	return nodeSpecs[t].name
}

// BaseHealth is the health a freshly built node starts with.
func (t NodeType) BaseHealth() float64 { return nodeSpecs[t].health }

// Capacity is the nutrient capacity the type contributes (Nucleus and Storage only).
func (t NodeType) Capacity() float64 { return nodeSpecs[t].capacity }

// Cost is the nutrient price of building the type.
func (t NodeType) Cost() float64 { return nodeSpecs[t].cost }

// Produces returns the resource a node of this type generates each cycle.
func (t NodeType) Produces() ResourceKind {
	switch t {
	case Extractor:
		return ResourceNutrient
	case Defense:
		return ResourceDefense
	default:
		return ResourceNone
	}
}

// BaseRate is the default production rate for the resource the type produces.
func (t NodeType) BaseRate() float64 {
	switch t.Produces() {
	case ResourceNutrient:
		return nodeSpecs[t].nutrient
	case ResourceDefense:
		return nodeSpecs[t].defense
	default:
		return 0
	}
}

// BuildableTypes lists the types the construction service accepts.
func BuildableTypes() []NodeType {
	return []NodeType{Extractor, Storage, Defense}
}

// ParseNodeType resolves a case-insensitive type name.
func ParseNodeType(s string) (NodeType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, spec := range nodeSpecs {
		if spec.name == name {
			return NodeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node type %q", s)
}

// ResourceKind identifies a pooled resource.
type ResourceKind uint8

const (
	ResourceNone ResourceKind = iota
	ResourceNutrient
	ResourceDefense
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceNutrient:
		return "nutrient"
	case ResourceDefense:
		return "defense"
	default:
		return "none"
	}
}

// NodeState is the infection state of a node.
type NodeState uint8

const (
	StateHealthy NodeState = iota
	StateInfected
	StateTerminal // absorbing
)

func (s NodeState) String() string {
	switch s {
	case StateInfected:
		return "infected"
	case StateTerminal:
		return "terminal"
	default:
		return "healthy"
	}
}

// NodeID indexes a node in its colony's arena. IDs are dense and stable.
type NodeID int

// Point is an integer grid coordinate; it is also a node's identity.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Node is a vertex of the colony graph. Only the owning Colony mutates it.
type Node struct {
	pos       Point
	kind      NodeType
	health    float64
	infection float64
	terminal  bool
	rate      float64
	neighbors []NodeID
	tracked   bool // member of the colony's infected list
}

func (n *Node) Pos() Point { return n.pos }
func (n *Node) X() int { return n.pos.X }
func (n *Node) Y() int { return n.pos.Y }
func (n *Node) Type() NodeType { return n.kind }
func (n *Node) Health() float64 { return n.health }
func (n *Node) InfectionLevel() float64 { return n.infection }
func (n *Node) Terminal() bool { return n.terminal }
func (n *Node) ProductionRate() float64 { return n.rate }
func (n *Node) Alive() bool { return n.health > 0 }
func (n *Node) Degree() int { return len(n.neighbors) }

// Neighbors returns a copy of the node's adjacency list.
func (n *Node) Neighbors() []NodeID {
	out := make([]NodeID, len(n.neighbors))
	copy(out, n.neighbors)
	return out
}

// State classifies the node for the infection state machine.
func (n *Node) State() NodeState {
	switch {
	case n.terminal:
		return StateTerminal
	case n.infection > 0:
		return StateInfected
	default:
		return StateHealthy
	}
}

// Output is the single authority on what a node contributes this cycle.
// Dead and terminal nodes contribute nothing.
func (n *Node) Output() (ResourceKind, float64) {
	kind := n.kind.Produces()
	if kind == ResourceNone || !n.Alive() || n.terminal {
		return kind, 0
	}
	return kind, n.rate
}

func (n *Node) hasNeighbor(id NodeID) bool {
	for _, nb := range n.neighbors {
		if nb == id {
			return true
		}
	}
	return false
}
