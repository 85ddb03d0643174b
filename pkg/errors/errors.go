package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Domain kinds surfaced to clients verbatim.
	CodeUnsupportedTier          Code = "UNSUPPORTED_TIER"
	CodeBillingProvider          Code = "BILLING_PROVIDER_ERROR"
	CodeOfferUnavailable         Code = "OFFER_UNAVAILABLE"
	CodeDuplicateReservation     Code = "DUPLICATE_RESERVATION"
	CodeAlreadyUsed              Code = "ALREADY_USED"
	CodeAlreadyActive            Code = "ALREADY_ACTIVE"
	CodeFeedbackAlreadySubmitted Code = "FEEDBACK_ALREADY_SUBMITTED"
	CodeInvalidRating            Code = "INVALID_RATING"
	CodeSubscriptionExpired      Code = "SUBSCRIPTION_EXPIRED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		PublicMessage: "rate limit exceeded",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "dependency unavailable",
	},
	CodeUnsupportedTier: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "tier requires a custom quote, please contact sales",
		DetailsAllowed: true,
	},
	CodeBillingProvider: {
		HTTPStatus:    http.StatusBadGateway,
		Retryable:     true,
		PublicMessage: "billing provider error",
	},
	CodeOfferUnavailable: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "offer not available",
	},
	CodeDuplicateReservation: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "offer already reserved",
	},
	CodeAlreadyUsed: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "booking already used",
	},
	CodeAlreadyActive: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "privilege already active",
	},
	CodeFeedbackAlreadySubmitted: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "feedback already submitted",
	},
	CodeInvalidRating: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "rating must be between 1 and 5",
	},
	CodeSubscriptionExpired: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "subscription expired",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error returned by services. Handlers translate it into
// the public envelope using the code metadata.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in the chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
