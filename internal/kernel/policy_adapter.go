package kernel

import "github.com/aristath/settlement-kernel/internal/kernel/policy"

// compilePolicy compiles a policy reference and translates any
// validation failure into the public kernel error type, so callers
// outside this package never need to import the policy package.
func compilePolicy(ref *policy.Ref) (*policy.CompiledPolicy, error) {
	compiled, err := policy.Compile(ref)
	if err != nil {
		if vf, ok := err.(*policy.ValidationFailure); ok {
			issues := make([]ValidationIssue, len(vf.Issues))
			for i, iss := range vf.Issues {
				issues[i] = ValidationIssue{NodeID: iss.NodeID, Message: iss.Message}
			}
			return nil, &PolicyValidationError{TreeName: vf.TreeName, Errors: issues}
		}
		return nil, err
	}
	return compiled, nil
}

// wrapPolicyEvalError translates a policy.EvalError into the public
// kernel error type.
func wrapPolicyEvalError(err error) error {
	if ee, ok := err.(*policy.EvalError); ok {
		return &PolicyEvaluationError{NodeID: ee.NodeID, Reason: ee.Reason}
	}
	return err
}
