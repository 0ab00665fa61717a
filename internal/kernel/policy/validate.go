package policy

import "fmt"

// ValidationIssue mirrors kernel.ValidationIssue without creating an
// import cycle; kernel converts this into kernel.ValidationIssue.
type ValidationIssue struct {
	NodeID  string
	Message string
}

// AssignNodeIDs walks tree in a fixed pre-order and fills in any empty
// NodeID with a stable, deterministic id derived from treeType and
// position, per spec §4.4 ("auto-assign stable IDs when absent").
func AssignNodeIDs(tree *Node, treeType TreeType) {
	n := 0
	var walk func(node *Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		if node.NodeID == "" {
			node.NodeID = fmt.Sprintf("%s#%d", treeType, n)
		}
		n++
		if node.Type == NodeCondition {
			walk(node.OnTrue)
			walk(node.OnFalse)
		}
	}
	walk(tree)
}

// Validate checks the load-time rules of spec §4.4 against a single
// tree. It returns every issue found rather than stopping at the
// first, so a caller can report them all at once in
// kernel.PolicyValidationError.
func Validate(tree *Node, treeType TreeType) []ValidationIssue {
	var issues []ValidationIssue
	seenIDs := make(map[string]bool)

	var walk func(node *Node)
	walk = func(node *Node) {
		if node == nil {
			issues = append(issues, ValidationIssue{Message: "nil node reached"})
			return
		}
		if node.NodeID == "" {
			issues = append(issues, ValidationIssue{Message: "node_id must not be empty after assignment"})
		} else if seenIDs[node.NodeID] {
			issues = append(issues, ValidationIssue{NodeID: node.NodeID, Message: "duplicate node_id"})
		}
		seenIDs[node.NodeID] = true

		switch node.Type {
		case NodeAction:
			validateAction(node, treeType, &issues)
		case NodeCondition:
			if node.Condition == nil {
				issues = append(issues, ValidationIssue{NodeID: node.NodeID, Message: "condition node missing condition"})
				return
			}
			validateOperand(node.Condition.Left, treeType, node.NodeID, &issues)
			validateOperand(node.Condition.Right, treeType, node.NodeID, &issues)
			switch node.Condition.Op {
			case CmpLT, CmpLE, CmpGT, CmpGE, CmpEQ, CmpNE:
			default:
				issues = append(issues, ValidationIssue{NodeID: node.NodeID, Message: "unknown comparison operator"})
			}
			if node.OnTrue == nil || node.OnFalse == nil {
				issues = append(issues, ValidationIssue{NodeID: node.NodeID, Message: "condition node missing on_true/on_false branch"})
				return
			}
			walk(node.OnTrue)
			walk(node.OnFalse)
		default:
			issues = append(issues, ValidationIssue{NodeID: node.NodeID, Message: "unknown node type"})
		}
	}
	walk(tree)
	return issues
}

func validateAction(node *Node, treeType TreeType, issues *[]ValidationIssue) {
	if node.Action == nil {
		*issues = append(*issues, ValidationIssue{NodeID: node.NodeID, Message: "action node missing action"})
		return
	}
	act := node.Action
	if !IsActionAllowed(treeType, act.Type) {
		*issues = append(*issues, ValidationIssue{NodeID: node.NodeID, Message: fmt.Sprintf("action %q not allowed in %s", act.Type, treeType)})
	}
	for _, p := range requiredParams[act.Type] {
		v, ok := act.Parameters[p]
		if !ok {
			*issues = append(*issues, ValidationIssue{NodeID: node.NodeID, Message: fmt.Sprintf("action %q missing required parameter %q", act.Type, p)})
			continue
		}
		if msg := CheckBounds(p, v); msg != "" {
			*issues = append(*issues, ValidationIssue{NodeID: node.NodeID, Message: fmt.Sprintf("parameter %q: %s", p, msg)})
		}
	}
	if act.Type == ActionSetStateRegister && act.StateKey == "" {
		*issues = append(*issues, ValidationIssue{NodeID: node.NodeID, Message: "SetStateRegister requires state_key"})
	}
}

func validateOperand(op *Operand, treeType TreeType, nodeID string, issues *[]ValidationIssue) {
	if op == nil {
		*issues = append(*issues, ValidationIssue{NodeID: nodeID, Message: "operand missing"})
		return
	}
	switch op.Kind {
	case OperandField:
		if !fieldsForTree(treeType, op.Field) {
			*issues = append(*issues, ValidationIssue{NodeID: nodeID, Message: fmt.Sprintf("unknown or disallowed field %q for %s", op.Field, treeType)})
		}
	case OperandParam:
		if op.Param == "" {
			*issues = append(*issues, ValidationIssue{NodeID: nodeID, Message: "param operand missing name"})
		}
	case OperandValue:
		// literal, always valid
	case OperandCompute:
		if op.Compute == nil {
			*issues = append(*issues, ValidationIssue{NodeID: nodeID, Message: "compute operand missing expression"})
			return
		}
		switch op.Compute.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpMin, OpMax:
		default:
			*issues = append(*issues, ValidationIssue{NodeID: nodeID, Message: "unknown compute operator"})
		}
		validateOperand(op.Compute.Left, treeType, nodeID, issues)
		validateOperand(op.Compute.Right, treeType, nodeID, issues)
	default:
		*issues = append(*issues, ValidationIssue{NodeID: nodeID, Message: "unknown operand kind"})
	}
}
