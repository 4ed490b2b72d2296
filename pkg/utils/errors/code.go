package errors

// Service codes (AA).
const (
	// ServiceCommon is for errors shared by every service.
	ServiceCommon = 0
	// ServiceGrader is for the rubric grading service.
	ServiceGrader = 20
)

// Category codes (BB).
const (
	CategoryRequest   = 1
	CategoryResource  = 4
	CategoryInternal  = 7
	CategoryDatabase  = 8
	CategoryNetwork   = 10
	CategoryTimeout   = 11
	CategoryRateLimit = 6
)

// MakeCode builds an AABBCCC code.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits a code into service, category and sequence.
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// IsClientError reports whether code belongs to a 4xx category.
func IsClientError(code int) bool {
	_, category, _ := ParseCode(code)
	return category >= CategoryRequest && category <= CategoryRateLimit
}
