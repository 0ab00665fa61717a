package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_FixedPolicies(t *testing.T) {
	names := []struct {
		ref  *Ref
		name string
	}{
		{&Ref{Type: "Fifo"}, "fifo"},
		{&Ref{Type: "Deadline"}, "deadline"},
		{&Ref{Type: "LiquidityAware"}, "liquidity_aware"},
	}
	for _, tt := range names {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := Compile(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.name, cp.Name)
			assert.NotNil(t, cp.PaymentTree)
			assert.NotNil(t, cp.BankTree)
			assert.NotNil(t, cp.StrategicCollateralTree)
			assert.NotNil(t, cp.EndOfTickCollateralTree)
		})
	}
}

func TestCompile_UnknownType(t *testing.T) {
	_, err := Compile(&Ref{Type: "Bogus"})
	assert.Error(t, err)
}

func TestCompile_NilRef(t *testing.T) {
	_, err := Compile(nil)
	assert.Error(t, err)
}

func TestCompile_FromJson_Valid(t *testing.T) {
	doc := `{
		"payment_tree": {"type":"action","action":{"action":"Release"}},
		"bank_tree": {"type":"action","action":{"action":"NoOp"}},
		"strategic_collateral_tree": {"type":"action","action":{"action":"HoldCollateral"}},
		"end_of_tick_collateral_tree": {"type":"action","action":{"action":"HoldCollateral"}}
	}`
	cp, err := Compile(&Ref{Type: "FromJson", JSON: json.RawMessage(doc)})
	require.NoError(t, err)
	assert.Equal(t, "from_json", cp.Name)
	assert.NotEmpty(t, cp.PaymentTree.NodeID, "Compile must auto-assign node ids before validating")
}

func TestCompile_FromJson_RejectsDisallowedAction(t *testing.T) {
	// Release is a payment_tree-only action; placing it on bank_tree
	// must fail load-time validation.
	doc := `{"bank_tree": {"type":"action","action":{"action":"Release"}}}`
	_, err := Compile(&Ref{Type: "FromJson", JSON: json.RawMessage(doc)})
	require.Error(t, err)
	var vf *ValidationFailure
	assert.ErrorAs(t, err, &vf)
}

func TestCompile_FromJson_RejectsUnknownField(t *testing.T) {
	doc := `{"payment_tree": {
		"type":"condition",
		"condition":{"op":"<","left":{"kind":"field","field":"not_a_real_field"},"right":{"kind":"value","value":1}},
		"on_true":{"type":"action","action":{"action":"Release"}},
		"on_false":{"type":"action","action":{"action":"Hold"}}
	}}`
	_, err := Compile(&Ref{Type: "FromJson", JSON: json.RawMessage(doc)})
	require.Error(t, err)
}

func TestCompile_FromJson_RejectsMissingRequiredParameter(t *testing.T) {
	doc := `{"payment_tree": {"type":"action","action":{"action":"SetPriority"}}}`
	_, err := Compile(&Ref{Type: "FromJson", JSON: json.RawMessage(doc)})
	require.Error(t, err)
}

func TestCompile_FromJson_RejectsOutOfBoundsParameter(t *testing.T) {
	doc := `{"payment_tree": {"type":"action","action":{"action":"SetPriority","parameters":{"priority":99}}}}`
	_, err := Compile(&Ref{Type: "FromJson", JSON: json.RawMessage(doc)})
	require.Error(t, err)
}

func TestCompile_FromJson_InvalidDocument(t *testing.T) {
	_, err := Compile(&Ref{Type: "FromJson", JSON: json.RawMessage(`{not json`)})
	assert.Error(t, err)
}

func TestAssignNodeIDs_StableAndDeterministic(t *testing.T) {
	tree := cond(CmpLT, field("balance"), literal(0),
		action(ActionRelease, nil),
		action(ActionHold, nil),
	)
	AssignNodeIDs(tree, PaymentTree)
	assert.Equal(t, "payment_tree#0", tree.NodeID)
	assert.Equal(t, "payment_tree#1", tree.OnTrue.NodeID)
	assert.Equal(t, "payment_tree#2", tree.OnFalse.NodeID)

	// Re-running on a fresh copy of the same shape reproduces the same ids.
	tree2 := cond(CmpLT, field("balance"), literal(0),
		action(ActionRelease, nil),
		action(ActionHold, nil),
	)
	AssignNodeIDs(tree2, PaymentTree)
	assert.Equal(t, tree.NodeID, tree2.NodeID)
	assert.Equal(t, tree.OnTrue.NodeID, tree2.OnTrue.NodeID)
}

func TestEvaluate_FifoAlwaysReleases(t *testing.T) {
	cp, err := Compile(&Ref{Type: "Fifo"})
	require.NoError(t, err)
	ctx := &Context{HasTransaction: true, Amount: 500}
	act, err := Evaluate(cp.PaymentTree, ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionRelease, act.Type)
}

func TestEvaluate_DeadlineHoldsUntilUrgent(t *testing.T) {
	cp, err := Compile(&Ref{Type: "Deadline"})
	require.NoError(t, err)

	far := &Context{HasTransaction: true, TicksToDeadline: 20}
	act, err := Evaluate(cp.PaymentTree, far, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, act.Type)

	urgent := &Context{HasTransaction: true, TicksToDeadline: 1}
	act, err = Evaluate(cp.PaymentTree, urgent, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionRelease, act.Type)
}

func TestEvaluate_ComputeDivisionByZero(t *testing.T) {
	tree := cond(CmpGE,
		&Operand{Kind: OperandCompute, Compute: &ComputeExpr{Op: OpDiv, Left: field("balance"), Right: literal(0)}},
		literal(0),
		action(ActionRelease, nil),
		action(ActionHold, nil),
	)
	AssignNodeIDs(tree, PaymentTree)
	_, err := Evaluate(tree, &Context{Balance: 100}, nil)
	require.Error(t, err)
	var evalErr *EvalError
	assert.ErrorAs(t, err, &evalErr)
}

func TestEvaluate_TransactionFieldUnavailableOutsidePaymentContext(t *testing.T) {
	tree := cond(CmpGT, field("amount"), literal(0),
		action(ActionRelease, nil),
		action(ActionHold, nil),
	)
	AssignNodeIDs(tree, BankTree)
	_, err := Evaluate(tree, &Context{HasTransaction: false}, nil)
	assert.Error(t, err)
}

func TestEvaluate_ParamOperand(t *testing.T) {
	tree := cond(CmpGE, field("balance"), &Operand{Kind: OperandParam, Param: "floor"},
		action(ActionRelease, nil),
		action(ActionHold, nil),
	)
	AssignNodeIDs(tree, PaymentTree)

	act, err := Evaluate(tree, &Context{Balance: 50}, map[string]int64{"floor": 10})
	require.NoError(t, err)
	assert.Equal(t, ActionRelease, act.Type)

	_, err = Evaluate(tree, &Context{Balance: 50}, nil)
	assert.Error(t, err, "missing param must surface as an evaluation error, not a silent zero")
}

func TestIsActionAllowed(t *testing.T) {
	assert.True(t, IsActionAllowed(PaymentTree, ActionRelease))
	assert.False(t, IsActionAllowed(BankTree, ActionRelease))
	assert.True(t, IsActionAllowed(BankTree, ActionSetReleaseBudget))
	assert.True(t, IsActionAllowed(StrategicCollateralTree, ActionPostCollateral))
	assert.False(t, IsActionAllowed(StrategicCollateralTree, ActionRelease))
}

func TestCheckBounds(t *testing.T) {
	assert.Equal(t, "", CheckBounds("priority", 5))
	assert.NotEqual(t, "", CheckBounds("priority", 11))
	assert.Equal(t, "", CheckBounds("amount", 999_999), "unbounded parameters never fail")
}

func TestFieldsForTree_TransactionFieldsPaymentOnly(t *testing.T) {
	assert.True(t, fieldsForTree(PaymentTree, "amount"))
	assert.False(t, fieldsForTree(BankTree, "amount"))
	assert.True(t, fieldsForTree(BankTree, "balance"))
	assert.False(t, fieldsForTree(PaymentTree, "not_a_field"))
}
