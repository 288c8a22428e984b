// Package diag defines the closed diagnostic rule-id enumeration
// the Diagnostic/Severity data model, and a Rust-style
// terminal reporter with a caret-underline layout and a closed rule
// set instead of open-ended semantic error codes.
package diag

// RuleID is one of the closed enumeration of diagnostic families from
// Unlike an open "E0001..." range reserved for
// future error kinds, this set is exhaustive: every defect detector in
// internal/analysis emits exactly the rule ids named here.
type RuleID string

const (
	RuleStackOverflow      RuleID = "StackOverflow"
	RuleRecursiveFunction  RuleID = "RecursiveFunction"
	RuleInfiniteRecursion  RuleID = "InfiniteRecursion"
	RuleDynamicAlloca      RuleID = "DynamicAlloca"

	RuleAllocaOversizedConstant  RuleID = "AllocaOversizedConstant"
	RuleAllocaUserControlled     RuleID = "AllocaUserControlled"
	RuleAllocaRecursiveControlled RuleID = "AllocaRecursiveControlled"
	RuleAllocaInfiniteRecursive  RuleID = "AllocaInfiniteRecursive"

	RuleStackBufferOverflowUpper    RuleID = "StackBufferOverflow.Upper"
	RuleStackBufferOverflowLower    RuleID = "StackBufferOverflow.Lower"
	RuleStackBufferOverflowConstant RuleID = "StackBufferOverflow.Constant"
	RuleMultipleStoresInfo          RuleID = "MultipleStoresInfo"

	RuleInvalidBaseReconstructionError   RuleID = "InvalidBaseReconstruction.Error"
	RuleInvalidBaseReconstructionWarning RuleID = "InvalidBaseReconstruction.Warning"

	RuleMemIntrinsicOverflow RuleID = "MemIntrinsicOverflow"
	RuleSizeMinusKWrite      RuleID = "SizeMinusKWrite"

	RuleStackPointerEscapeReturn      RuleID = "StackPointerEscape.Return"
	RuleStackPointerEscapeStoreGlobal RuleID = "StackPointerEscape.StoreGlobal"
	RuleStackPointerEscapeStoreUnknown RuleID = "StackPointerEscape.StoreUnknown"
	RuleStackPointerEscapeCallArg     RuleID = "StackPointerEscape.CallArg"
	RuleStackPointerEscapeCallCallback RuleID = "StackPointerEscape.CallCallback"

	RuleConstParameterNotModifiedPointer                  RuleID = "ConstParameterNotModified.Pointer"
	RuleConstParameterNotModifiedPointerConstOnly         RuleID = "ConstParameterNotModified.PointerConstOnly"
	RuleConstParameterNotModifiedReference                RuleID = "ConstParameterNotModified.Reference"
	RuleConstParameterNotModifiedReferenceRvalue          RuleID = "ConstParameterNotModified.ReferenceRvalue"
	RuleConstParameterNotModifiedReferenceRvaluePreferValue RuleID = "ConstParameterNotModified.ReferenceRvaluePreferValue"

	RuleDuplicateIfCondition RuleID = "DuplicateIfCondition"
)

// descriptions holds one human-readable line per rule id, for --help
// output and report footnotes.
var descriptions = map[RuleID]string{
	RuleStackOverflow:             "Function's transitive worst-case stack usage exceeds the configured limit",
	RuleRecursiveFunction:         "Function participates in a call-graph cycle",
	RuleInfiniteRecursion:         "Every return path is dominated by an unconditional self-call",
	RuleDynamicAlloca:             "Allocation size is not resolvable to a compile-time constant",
	RuleAllocaOversizedConstant:   "Constant-sized local allocation exceeds the large-allocation threshold",
	RuleAllocaUserControlled:      "Local allocation size is derived from an argument or other non-local value",
	RuleAllocaRecursiveControlled: "User-controlled allocation occurs in a recursive function",
	RuleAllocaInfiniteRecursive:   "User-controlled allocation occurs in an infinitely self-recursive function",
	RuleStackBufferOverflowUpper:  "Index may exceed the array's upper bound",
	RuleStackBufferOverflowLower:  "Index may be negative",
	RuleStackBufferOverflowConstant: "Constant index is out of the array's bounds",
	RuleMultipleStoresInfo:        "Buffer is written through more than one distinct store site",
	RuleInvalidBaseReconstructionError:   "Reconstructed base pointer is provably out of bounds",
	RuleInvalidBaseReconstructionWarning: "Reconstructed base pointer offset could not be verified",
	RuleMemIntrinsicOverflow:      "Memory intrinsic length constant exceeds the destination buffer size",
	RuleSizeMinusKWrite:           "Write length has the form size-k and neither operand could be proven safe",
	RuleStackPointerEscapeReturn:      "Address of a local allocation is returned",
	RuleStackPointerEscapeStoreGlobal: "Address of a local allocation is stored into a global variable",
	RuleStackPointerEscapeStoreUnknown: "Address of a local allocation is stored through an unidentified pointer",
	RuleStackPointerEscapeCallArg:     "Address of a local allocation is passed to a capturing call argument",
	RuleStackPointerEscapeCallCallback: "Address of a local allocation is passed to an indirect call",
	RuleConstParameterNotModifiedPointer:          "Pointer parameter is never written through and could be const-qualified",
	RuleConstParameterNotModifiedPointerConstOnly:  "Pointer itself (not its pointee) is already const-qualified",
	RuleConstParameterNotModifiedReference:         "Reference parameter is never written through and could be const-qualified",
	RuleConstParameterNotModifiedReferenceRvalue:   "Rvalue-reference parameter is never written through",
	RuleConstParameterNotModifiedReferenceRvaluePreferValue: "Rvalue-reference parameter could be taken by value or const lvalue reference instead",
	RuleDuplicateIfCondition: "Branch condition duplicates a dominating else-if condition",
}

// Describe returns the human-readable description for id, or a generic
// fallback for an id outside the closed enumeration (should not happen
// in practice, since detectors only ever construct known RuleIDs).
func Describe(id RuleID) string {
	if d, ok := descriptions[id]; ok {
		return d
	}
	return "Unknown diagnostic rule"
}
