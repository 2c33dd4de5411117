package reading

import "errors"

var (
	// ErrMalformedHeader is returned when the three sensor header rows are
	// missing or disagree in width.
	ErrMalformedHeader = errors.New("reading: malformed header")
	// ErrEmptyPlantName is returned when the plant name is empty.
	ErrEmptyPlantName = errors.New("reading: empty plant name")
	// ErrEmptyMachineNo is returned when the machine number is empty.
	ErrEmptyMachineNo = errors.New("reading: empty machine number")
)
