// Package policy implements the decision-tree policy engine of spec
// §4.4: a typed tagged-union node tree, a closed set of context
// fields, load-time validation, and tree evaluation over a typed
// context — replacing the source's dynamic dict-based trees per the
// design note in spec §9.
package policy

import "encoding/json"

// TreeType names one of the four policy trees an agent carries.
type TreeType string

const (
	PaymentTree             TreeType = "payment_tree"
	BankTree                TreeType = "bank_tree"
	StrategicCollateralTree TreeType = "strategic_collateral_tree"
	EndOfTickCollateralTree TreeType = "end_of_tick_collateral_tree"
)

// NodeType discriminates the two node shapes in a tree.
type NodeType string

const (
	NodeAction    NodeType = "action"
	NodeCondition NodeType = "condition"
)

// OperandKind discriminates the four operand shapes.
type OperandKind string

const (
	OperandField   OperandKind = "field"
	OperandParam   OperandKind = "param"
	OperandValue   OperandKind = "value"
	OperandCompute OperandKind = "compute"
)

// Operand is a sum type over Field | Param | Literal | Compute.
type Operand struct {
	Kind    OperandKind  `json:"kind"`
	Field   string       `json:"field,omitempty"`
	Param   string       `json:"param,omitempty"`
	Value   int64        `json:"value,omitempty"`
	Compute *ComputeExpr `json:"compute,omitempty"`
}

// ComputeOp is one of +,-,*,/,min,max.
type ComputeOp string

const (
	OpAdd ComputeOp = "+"
	OpSub ComputeOp = "-"
	OpMul ComputeOp = "*"
	OpDiv ComputeOp = "/"
	OpMin ComputeOp = "min"
	OpMax ComputeOp = "max"
)

type ComputeExpr struct {
	Op    ComputeOp `json:"op"`
	Left  *Operand  `json:"left"`
	Right *Operand  `json:"right"`
}

// CompareOp is one of <,<=,>,>=,==,!=.
type CompareOp string

const (
	CmpLT CompareOp = "<"
	CmpLE CompareOp = "<="
	CmpGT CompareOp = ">"
	CmpGE CompareOp = ">="
	CmpEQ CompareOp = "=="
	CmpNE CompareOp = "!="
)

type Condition struct {
	Op    CompareOp `json:"op"`
	Left  *Operand  `json:"left"`
	Right *Operand  `json:"right"`
}

// ActionType enumerates every action any tree type may emit. Each tree
// type only allows a subset (see fields.go's allowedActions).
type ActionType string

const (
	ActionRelease     ActionType = "Release"
	ActionHold        ActionType = "Hold"
	ActionSplit       ActionType = "Split"
	ActionSetPriority ActionType = "SetPriority"

	ActionSetReleaseBudget ActionType = "SetReleaseBudget"
	ActionSetStateRegister ActionType = "SetStateRegister"
	ActionNoOp             ActionType = "NoOp"

	ActionPostCollateral ActionType = "PostCollateral"
	ActionHoldCollateral ActionType = "HoldCollateral"
)

// ActionSpec is the fully-resolved action a tree walk terminates in.
// Parameters carries integer-cent/tick/bps parameters; StateKey/Reason/
// FocusCounterparties hold the non-numeric payload of a few actions.
type ActionSpec struct {
	Type       ActionType       `json:"action"`
	Parameters map[string]int64 `json:"parameters,omitempty"`

	StateKey            string   `json:"state_key,omitempty"`             // SetStateRegister
	Reason              string   `json:"reason,omitempty"`                // PostCollateral
	FocusCounterparties []string `json:"focus_counterparties,omitempty"`  // SetReleaseBudget
}

// Node is the tagged-union tree node: either an action leaf or a
// condition branch.
type Node struct {
	NodeID    string     `json:"node_id"`
	Type      NodeType   `json:"type"`
	Action    *ActionSpec `json:"action,omitempty"`
	Condition *Condition  `json:"condition,omitempty"`
	OnTrue    *Node       `json:"on_true,omitempty"`
	OnFalse   *Node       `json:"on_false,omitempty"`
}

// RawTreeSet is the FromJson wire shape: one raw node tree per tree type.
type RawTreeSet struct {
	PaymentTree             *Node `json:"payment_tree,omitempty"`
	BankTree                *Node `json:"bank_tree,omitempty"`
	StrategicCollateralTree *Node `json:"strategic_collateral_tree,omitempty"`
	EndOfTickCollateralTree *Node `json:"end_of_tick_collateral_tree,omitempty"`
}

// Ref is one of the four policy reference forms of spec §6.
type Ref struct {
	Type             string          `json:"type"`
	UrgencyThreshold *int64          `json:"urgency_threshold,omitempty"`
	TargetBuffer     *int64          `json:"target_buffer,omitempty"`
	JSON             json.RawMessage `json:"json,omitempty"`
}

// CompiledPolicy is the validated, ready-to-evaluate form of an agent's
// four decision trees.
type CompiledPolicy struct {
	Name                    string
	PaymentTree             *Node
	BankTree                *Node
	StrategicCollateralTree *Node
	EndOfTickCollateralTree *Node
}
