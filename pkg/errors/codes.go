package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.  The
// prefix before the underscore names the owning module.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeMessageQueue       ErrorCode = "COMMON_015"
	ErrCodeStorage            ErrorCode = "COMMON_016"
	ErrCodeSearchIndex        ErrorCode = "COMMON_017"
	ErrCodeNotImplemented     ErrorCode = "COMMON_018"
)

// Sentinel codes.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Configuration error codes.
const (
	ErrCodeConfiguration ErrorCode = "CFG_001"
	ErrCodeConfigLoad    ErrorCode = "CFG_002"
)

// Customer input error codes.
const (
	ErrCodeCustomerRecordInvalid ErrorCode = "CUST_001"
	ErrCodeMalformedValue        ErrorCode = "CUST_002"
	ErrCodeEmptyBatch            ErrorCode = "CUST_003"
)

// Lead scoring error codes.
const (
	ErrCodeScoringFailed   ErrorCode = "LEAD_001"
	ErrCodeScoringParams   ErrorCode = "LEAD_002"
	ErrCodeLeadNotEligible ErrorCode = "LEAD_003"
)

// Offer and catalog error codes.
const (
	ErrCodeCatalogInvalid   ErrorCode = "CAT_001"
	ErrCodeProductNotFound  ErrorCode = "CAT_002"
	ErrCodeCampaignNotFound ErrorCode = "CAT_003"
	ErrCodeCatalogEmpty     ErrorCode = "CAT_004"
	ErrCodeMatchingFailed   ErrorCode = "OFFER_001"
	ErrCodePricingFailed    ErrorCode = "OFFER_002"
)

// Recommendation pipeline error codes.
const (
	ErrCodePipelineStage   ErrorCode = "REC_001"
	ErrCodeBatchCancelled  ErrorCode = "REC_002"
	ErrCodeBatchTimeout    ErrorCode = "REC_003"
	ErrCodeExportFailed    ErrorCode = "REC_004"
	ErrCodeInvalidMaxCount ErrorCode = "REC_005"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeMessageQueue:       http.StatusInternalServerError,
	ErrCodeStorage:            http.StatusInternalServerError,
	ErrCodeSearchIndex:        http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeConfiguration: http.StatusInternalServerError,
	ErrCodeConfigLoad:    http.StatusInternalServerError,

	ErrCodeCustomerRecordInvalid: http.StatusBadRequest,
	ErrCodeMalformedValue:        http.StatusBadRequest,
	ErrCodeEmptyBatch:            http.StatusBadRequest,

	ErrCodeScoringFailed:   http.StatusInternalServerError,
	ErrCodeScoringParams:   http.StatusInternalServerError,
	ErrCodeLeadNotEligible: http.StatusUnprocessableEntity,

	ErrCodeCatalogInvalid:   http.StatusInternalServerError,
	ErrCodeProductNotFound:  http.StatusNotFound,
	ErrCodeCampaignNotFound: http.StatusNotFound,
	ErrCodeCatalogEmpty:     http.StatusServiceUnavailable,
	ErrCodeMatchingFailed:   http.StatusInternalServerError,
	ErrCodePricingFailed:    http.StatusInternalServerError,

	ErrCodePipelineStage:   http.StatusInternalServerError,
	ErrCodeBatchCancelled:  http.StatusRequestTimeout,
	ErrCodeBatchTimeout:    http.StatusGatewayTimeout,
	ErrCodeExportFailed:    http.StatusInternalServerError,
	ErrCodeInvalidMaxCount: http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeMessageQueue:       "message queue error",
	ErrCodeStorage:            "object storage error",
	ErrCodeSearchIndex:        "search index error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeConfiguration: "invalid engine configuration",
	ErrCodeConfigLoad:    "failed to load configuration",

	ErrCodeCustomerRecordInvalid: "invalid customer record",
	ErrCodeMalformedValue:        "malformed field value",
	ErrCodeEmptyBatch:            "customer batch is empty",

	ErrCodeScoringFailed:   "lead scoring failed",
	ErrCodeScoringParams:   "invalid scoring parameters",
	ErrCodeLeadNotEligible: "lead not eligible",

	ErrCodeCatalogInvalid:   "invalid product catalog",
	ErrCodeProductNotFound:  "product not found",
	ErrCodeCampaignNotFound: "campaign not found",
	ErrCodeCatalogEmpty:     "product catalog is empty",
	ErrCodeMatchingFailed:   "offer matching failed",
	ErrCodePricingFailed:    "offer pricing failed",

	ErrCodePipelineStage:   "recommendation pipeline stage failed",
	ErrCodeBatchCancelled:  "recommendation batch cancelled",
	ErrCodeBatchTimeout:    "recommendation batch timed out",
	ErrCodeExportFailed:    "recommendation export failed",
	ErrCodeInvalidMaxCount: "max recommendations must be positive",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) == 2 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
