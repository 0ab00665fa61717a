package policy

import (
	"encoding/json"
	"fmt"
)

// Compile turns a policy Ref into a CompiledPolicy, validating every
// tree it builds. All four reference forms of spec §6 produce an
// equivalent internal decision-tree policy.
func Compile(ref *Ref) (*CompiledPolicy, error) {
	if ref == nil {
		return nil, fmt.Errorf("policy: ref must not be nil")
	}
	switch ref.Type {
	case "Fifo":
		return compileFixed("fifo", fifoTrees())
	case "Deadline":
		threshold := int64(5)
		if ref.UrgencyThreshold != nil {
			threshold = *ref.UrgencyThreshold
		}
		return compileFixed("deadline", deadlineTrees(threshold))
	case "LiquidityAware":
		buffer := int64(0)
		threshold := int64(5)
		if ref.TargetBuffer != nil {
			buffer = *ref.TargetBuffer
		}
		if ref.UrgencyThreshold != nil {
			threshold = *ref.UrgencyThreshold
		}
		return compileFixed("liquidity_aware", liquidityAwareTrees(buffer, threshold))
	case "FromJson":
		var raw RawTreeSet
		if err := json.Unmarshal(ref.JSON, &raw); err != nil {
			return nil, fmt.Errorf("policy: invalid FromJson document: %w", err)
		}
		return compileFixed("from_json", raw)
	default:
		return nil, fmt.Errorf("policy: unknown policy reference type %q", ref.Type)
	}
}

func compileFixed(name string, raw RawTreeSet) (*CompiledPolicy, error) {
	trees := map[TreeType]*Node{
		PaymentTree:             raw.PaymentTree,
		BankTree:                raw.BankTree,
		StrategicCollateralTree: raw.StrategicCollateralTree,
		EndOfTickCollateralTree: raw.EndOfTickCollateralTree,
	}
	for tt, node := range trees {
		if node == nil {
			continue
		}
		AssignNodeIDs(node, tt)
		if issues := Validate(node, tt); len(issues) > 0 {
			return nil, &ValidationFailure{TreeName: string(tt), Issues: issues}
		}
	}
	return &CompiledPolicy{
		Name:                    name,
		PaymentTree:             raw.PaymentTree,
		BankTree:                raw.BankTree,
		StrategicCollateralTree: raw.StrategicCollateralTree,
		EndOfTickCollateralTree: raw.EndOfTickCollateralTree,
	}, nil
}

// ValidationFailure is the policy-package-local validation error;
// kernel's compilePolicy wraps it into kernel.PolicyValidationError so callers
// outside this package never import policy.ValidationIssue directly.
type ValidationFailure struct {
	TreeName string
	Issues   []ValidationIssue
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("policy validation failed for %s: %d issue(s)", e.TreeName, len(e.Issues))
}

func action(t ActionType, params map[string]int64) *Node {
	return &Node{Type: NodeAction, Action: &ActionSpec{Type: t, Parameters: params}}
}

func field(name string) *Operand   { return &Operand{Kind: OperandField, Field: name} }
func literal(v int64) *Operand     { return &Operand{Kind: OperandValue, Value: v} }

func cond(op CompareOp, left, right *Operand, onTrue, onFalse *Node) *Node {
	return &Node{Type: NodeCondition, Condition: &Condition{Op: op, Left: left, Right: right}, OnTrue: onTrue, OnFalse: onFalse}
}

// fifoTrees: always release; a zero max_value release budget is an
// unconstrained one (see releaseBudgetAllows), so every tick a fifo
// agent's whole Queue1 backlog is offered to Queue2 in arrival order.
func fifoTrees() RawTreeSet {
	return RawTreeSet{
		PaymentTree:             action(ActionRelease, nil),
		BankTree:                action(ActionSetReleaseBudget, map[string]int64{"max_value": 0}),
		StrategicCollateralTree: action(ActionHoldCollateral, nil),
		EndOfTickCollateralTree: action(ActionHoldCollateral, nil),
	}
}

// deadlineTrees: release only once the deadline is within threshold
// ticks, otherwise hold.
func deadlineTrees(threshold int64) RawTreeSet {
	payment := cond(CmpLE, field("ticks_to_deadline"), literal(threshold),
		action(ActionRelease, nil),
		action(ActionHold, nil),
	)
	return RawTreeSet{
		PaymentTree:             payment,
		BankTree:                action(ActionNoOp, nil),
		StrategicCollateralTree: action(ActionHoldCollateral, nil),
		EndOfTickCollateralTree: action(ActionHoldCollateral, nil),
	}
}

// liquidityAwareTrees: release while balance stays above the target
// buffer, or once the deadline is urgent; otherwise hold. The
// strategic tree tops up collateral whenever the balance falls short
// of the buffer and capacity remains.
func liquidityAwareTrees(buffer, threshold int64) RawTreeSet {
	// amount is a declared cap; the strategic-collateral handler clamps
	// it to remaining_collateral_capacity, so declaring the full buffer
	// here means "post up to the target buffer, never more than capacity
	// allows".
	postIfBelowBuffer := cond(CmpGT, field("remaining_collateral_capacity"), literal(0),
		action(ActionPostCollateral, map[string]int64{"amount": buffer}),
		action(ActionHoldCollateral, nil),
	)
	strategic := cond(CmpLT, field("balance"), literal(buffer),
		postIfBelowBuffer,
		action(ActionHoldCollateral, nil),
	)
	balanceOK := cond(CmpGE,
		&Operand{Kind: OperandCompute, Compute: &ComputeExpr{Op: OpSub, Left: field("balance"), Right: field("amount")}},
		literal(buffer),
		action(ActionRelease, nil),
		cond(CmpLE, field("ticks_to_deadline"), literal(threshold),
			action(ActionRelease, nil),
			action(ActionHold, nil),
		),
	)
	return RawTreeSet{
		PaymentTree:             balanceOK,
		BankTree:                action(ActionNoOp, nil),
		StrategicCollateralTree: strategic,
		EndOfTickCollateralTree: strategic,
	}
}
