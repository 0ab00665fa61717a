package policy

// Category groupings mirror the SchemaCategory enum recovered from
// original_source's cli/commands/policy_schema.py, kept here purely as
// documentation groupings for the allowed-action tables below.
const (
	CategoryPaymentAction    = "PaymentAction"
	CategoryBankAction       = "BankAction"
	CategoryCollateralAction = "CollateralAction"
)

// allowedActions is the closed per-tree-type action set of spec §4.4.
var allowedActions = map[TreeType]map[ActionType]bool{
	PaymentTree: {
		ActionRelease:     true,
		ActionHold:        true,
		ActionSplit:       true,
		ActionSetPriority: true,
	},
	BankTree: {
		ActionSetReleaseBudget: true,
		ActionSetStateRegister: true,
		ActionNoOp:             true,
	},
	StrategicCollateralTree: {
		ActionPostCollateral: true,
		ActionHoldCollateral: true,
	},
	EndOfTickCollateralTree: {
		ActionPostCollateral: true,
		ActionHoldCollateral: true,
	},
}

// IsActionAllowed reports whether action is permitted for treeType.
func IsActionAllowed(treeType TreeType, action ActionType) bool {
	return allowedActions[treeType][action]
}

// requiredParams names the numeric parameters each action expects in
// ActionSpec.Parameters, used by load-time validation.
var requiredParams = map[ActionType][]string{
	ActionSplit:            {"fraction_bps"},
	ActionSetPriority:      {"priority"},
	ActionSetReleaseBudget: {"max_value"},
	ActionPostCollateral:   {"amount"},
}

// paramBounds constrains declared parameter values at load time, per
// spec §4.4 ("Parameter values fall within declared bounds").
var paramBounds = map[string][2]int64{
	"fraction_bps": {1, 9999},
	"priority":     {0, 10},
}

// CheckBounds reports a bounds violation message, or "" if in bounds
// or unconstrained.
func CheckBounds(param string, value int64) string {
	b, ok := paramBounds[param]
	if !ok {
		return ""
	}
	if value < b[0] || value > b[1] {
		return "parameter out of declared bounds"
	}
	return ""
}

// fieldsForTree restricts which context fields each tree type may
// reference: only payment_tree sees transaction-local fields.
func fieldsForTree(treeType TreeType, field string) bool {
	if !IsKnownField(field) {
		return false
	}
	if IsTransactionField(field) {
		return treeType == PaymentTree
	}
	return true
}
