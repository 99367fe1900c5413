package bridgeerrors

import (
	"errors"
	"strings"
)

// Codec (C) Errors
var (
	ErrCLengthMismatch        = errors.New("C1|LengthMismatch: Buffer length does not match the fixed encoded size.")
	ErrCUnknownChainType      = errors.New("C2|UnknownChainType: Chain type tag is not a known ledger family.")
	ErrCFieldWidth            = errors.New("C3|FieldWidth: Field value does not have its declared byte width.")
	ErrCTargetSystemTooLong   = errors.New("C4|TargetSystemTooLong: Target system exceeds 26 bytes.")
	ErrCUnknownProposalKind   = errors.New("C5|UnknownProposalKind: Proposal kind has no codec.")
	ErrCInvalidEnvelope       = errors.New("C6|InvalidEnvelope: Ledger transaction envelope cannot be decoded for its chain type.")
	ErrCFeeOutOfRange         = errors.New("C7|FeeOutOfRange: Wrapping fee exceeds 10000 basis points.")
	ErrCUnknownFunctionSig    = errors.New("C8|UnknownFunctionSignature: Function signature does not map to a proposal kind.")
	ErrCEmptyRefreshPublicKey = errors.New("C9|EmptyRefreshPublicKey: Refresh proposal carries no public key.")
)

// Governance (G) Errors
var (
	ErrGHandlerNotSet     = errors.New("G1|HandlerNotSet: Bridge side has no handler; call SetHandler first.")
	ErrGNonceMismatch     = errors.New("G2|NonceMismatch: Proposal nonce is not the current resource nonce plus one.")
	ErrGAnchorNotFound    = errors.New("G3|AnchorNotFound: No anchor registered for the requested chain and size.")
	ErrGChainMismatch     = errors.New("G4|ChainMismatch: Ledger chain id does not match the requested chain.")
	ErrGSideNotFound      = errors.New("G5|SideNotFound: No bridge side governs the requested chain.")
	ErrGProposalRejected  = errors.New("G6|ProposalRejected: Governance contract rejected the proposal.")
	ErrGSignerMismatch    = errors.New("G7|SignerMismatch: Proposal signature was not produced by the governor.")
	ErrGResourceNotLinked = errors.New("G8|ResourceNotLinked: Resource has no linked anchors.")
	ErrGDuplicateAnchor   = errors.New("G9|DuplicateAnchor: Anchor registered twice for the same resource.")
	ErrGOverlappingGroups = errors.New("G10|OverlappingGroups: Anchor appears in more than one linkage group.")
	ErrGTooManyEdges      = errors.New("G11|TooManyEdges: Linkage group exceeds the anchor's max edges.")
)

// Reconciliation (R) Errors
var (
	ErrRUnknownRoot     = errors.New("R1|UnknownRoot: Mirror root is not known to the ledger after resync.")
	ErrRLeafGap         = errors.New("R2|LeafGap: Insertion events skip a leaf index.")
	ErrRMirrorDiverged  = errors.New("R3|MirrorDiverged: Mirrored leaf differs from the ledger's leaf at the same index.")
	ErrRResync          = errors.New("R4|Resync: Mirror resynchronization failed.")
	ErrRMissingDeposit  = errors.New("R5|MissingDeposit: Receipt carries no insertion event.")
	ErrRHistoryNotFound = errors.New("R6|HistoryNotFound: No deposit history for the leaf index.")
)

// Proving (P) Errors
var (
	ErrPWitnessMalformed = errors.New("P1|WitnessMalformed: Witness does not match the circuit's inputs.")
	ErrPLeafNotFound     = errors.New("P2|LeafNotFound: Commitment is not in the mirrored tree.")
)

var registry = []error{
	ErrCLengthMismatch, ErrCUnknownChainType, ErrCFieldWidth, ErrCTargetSystemTooLong, ErrCUnknownProposalKind,
	ErrCInvalidEnvelope, ErrCFeeOutOfRange, ErrCUnknownFunctionSig, ErrCEmptyRefreshPublicKey,
	ErrGHandlerNotSet, ErrGNonceMismatch, ErrGAnchorNotFound, ErrGChainMismatch, ErrGSideNotFound,
	ErrGProposalRejected, ErrGSignerMismatch, ErrGResourceNotLinked, ErrGDuplicateAnchor, ErrGOverlappingGroups,
	ErrGTooManyEdges,
	ErrRUnknownRoot, ErrRLeafGap, ErrRMirrorDiverged, ErrRResync, ErrRMissingDeposit, ErrRHistoryNotFound,
	ErrPWitnessMalformed, ErrPLeafNotFound,
}

// known returns the first registered sentinel in err's chain.
func known(err error) error {
	for _, s := range registry {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := known(err).Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := known(err).Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(known(err).Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
