package oxyfbx

import "github.com/oxyfbx/oxyfbx/internal/errs"

// ErrorKind mirrors internal/errs.Kind on the public API surface so
// callers can switch on a load failure's category without importing an
// internal package.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrIO
	ErrTruncatedFile
	ErrCancelled
	ErrOutOfMemory
	ErrMemoryLimitExceeded
	ErrAllocationLimitExceeded
	ErrUnrecognizedFileFormat
	ErrUnsupportedVersion
	ErrBadNodeNesting
	ErrBadArrayType
	ErrBadArraySize
	ErrBadValueType
	ErrDeflateError
	ErrInvalidUTF8
	ErrBadIndex
	ErrMissingVertexPosition
	ErrDuplicateObjectID
	ErrDuplicateOverride
	ErrThreadedASCIIParse
)

var kindTable = [...]errs.Kind{
	ErrUnknown:                 errs.KindUnknown,
	ErrIO:                      errs.KindIO,
	ErrTruncatedFile:           errs.KindTruncatedFile,
	ErrCancelled:               errs.KindCancelled,
	ErrOutOfMemory:             errs.KindOutOfMemory,
	ErrMemoryLimitExceeded:     errs.KindMemoryLimitExceeded,
	ErrAllocationLimitExceeded: errs.KindAllocationLimitExceeded,
	ErrUnrecognizedFileFormat:  errs.KindUnrecognizedFileFormat,
	ErrUnsupportedVersion:      errs.KindUnsupportedVersion,
	ErrBadNodeNesting:          errs.KindBadNodeNesting,
	ErrBadArrayType:            errs.KindBadArrayType,
	ErrBadArraySize:            errs.KindBadArraySize,
	ErrBadValueType:            errs.KindBadValueType,
	ErrDeflateError:            errs.KindDeflateError,
	ErrInvalidUTF8:             errs.KindInvalidUTF8,
	ErrBadIndex:                errs.KindBadIndex,
	ErrMissingVertexPosition:   errs.KindMissingVertexPosition,
	ErrDuplicateObjectID:       errs.KindDuplicateObjectID,
	ErrDuplicateOverride:       errs.KindDuplicateOverride,
	ErrThreadedASCIIParse:      errs.KindThreadedASCIIParse,
}

func publicKind(k errs.Kind) ErrorKind {
	for pub, internal := range kindTable {
		if internal == k {
			return ErrorKind(pub)
		}
	}
	return ErrUnknown
}

// Error is the public error type returned by Load/LoadFile/LoadReader.
type Error struct {
	Kind   ErrorKind
	Desc   string
	Offset int64
}

func (e *Error) Error() string { return e.Desc }

func wrapErr(e *errs.Error) error {
	if e == nil {
		return nil
	}
	return &Error{Kind: publicKind(e.Kind), Desc: e.Error(), Offset: e.Offset}
}
