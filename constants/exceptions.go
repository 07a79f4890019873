package constants

// ExceptionKind enumerates the discrepancies a reconciliation pass can flag.
// ProviderUnavailable is deliberately absent: a failed OCR/LLM call is retried
// inside its cascade and only surfaces as IllegibleDocument or
// StructuringEmpty once the whole chain is exhausted.
type ExceptionKind string

const (
	ExcIllegibleDocument ExceptionKind = "IllegibleDocument" // text too short / image quality too low
	ExcStructuringEmpty  ExceptionKind = "StructuringEmpty"  // no line items from parser or LLM
	ExcUnresolvedOrder   ExceptionKind = "UnresolvedOrder"   // no order number, no candidate above threshold
	ExcQuantityExceeded  ExceptionKind = "QuantityExceeded"  // received > ordered + tolerance
	ExcInvalidProduct    ExceptionKind = "InvalidProduct"    // majority of extracted items fail validity
)

// OCRLineRef is the reserved line_ref marking acquisition/structuring-stage
// exceptions. Exceptions carrying it survive reprocessing; business-rule
// exceptions are recreated on each pass.
const OCRLineRef = "OCR"

// IsProcessingStage reports whether an exception with the given line_ref
// belongs to the acquisition/structuring stage rather than a business rule.
func IsProcessingStage(lineRef string) bool {
	return lineRef == OCRLineRef
}
