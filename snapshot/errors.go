package snapshot

import (
	"github.com/ava12/packrat"
	"github.com/ava12/packrat/grammar"
)

// Error codes used by snapshot:
const (
	UnnamedNativeError = packrat.SnapshotErrors + iota
	NativeConflictError
	EncodeError
	MalformedError
	VersionError
	IndexError
	KindError
	MetadataError
)

func unnamedNativeError(id int) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, UnnamedNativeError, "native without name cannot be stored in snapshot")
}

func nativeConflictError(name string) *packrat.Error {
	return packrat.FormatError(NativeConflictError, "different natives share name %q", name)
}

func encodeError(e error) *packrat.Error {
	return packrat.FormatError(EncodeError, "cannot encode snapshot: %s", e.Error())
}

func malformedError(what string, e error) *packrat.Error {
	if e == nil {
		return packrat.FormatError(MalformedError, "malformed snapshot: bad %s", what)
	}
	return packrat.FormatError(MalformedError, "malformed snapshot: bad %s (%s)", what, e.Error())
}

func versionError(v int) *packrat.Error {
	return packrat.FormatError(VersionError, "unsupported snapshot version %d, expecting %d", v, Version)
}

func indexError(id int, table string, index, size int) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, IndexError, "%s index %d is out of range [0, %d)", table, index, size)
}

func kindError(id int, k grammar.Kind) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, KindError, "unknown rule kind %d", int(k))
}

func metadataError(id int, msg string, params ...any) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, MetadataError, msg, params...)
}

func leftRecursionError(ids []int) *packrat.Error {
	return packrat.FormatErrorAt(ids[0], -1, MalformedError, "malformed snapshot: rules %v may call themselves without consuming tokens", ids)
}
