package engine

import "errors"

var (
	// ErrSyntax reports a malformed filter expression.
	ErrSyntax = errors.New("invalid filter syntax")
	// ErrUnknownColumn reports an identifier that is not a header.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrAmbiguousTruth is raised when and/or/not is applied to a column.
	ErrAmbiguousTruth = errors.New("the truth value of a column is ambiguous; use & | ~ instead of and/or/not")
	// ErrStrAccessor is raised when .str is used on a non-text column.
	ErrStrAccessor = errors.New("can only use .str accessor with string values")
	// ErrIncomparable reports an ordering comparison across incompatible types.
	ErrIncomparable = errors.New("values are not comparable")
	// ErrNotBoolean reports a filter that does not evaluate to booleans.
	ErrNotBoolean = errors.New("filter did not evaluate to a boolean mask")
	// ErrNullMask reports missing values in the final mask.
	ErrNullMask = errors.New("cannot mask with missing values")
	// ErrType reports an operand of the wrong type.
	ErrType = errors.New("unsupported operand type")
)
