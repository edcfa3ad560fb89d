package model

import "errors"

// Domain error taxonomy. These sentinels cross the HTTP boundary as short
// machine-readable codes so the proxy can rebuild the original error.
var (
	ErrUnknownEngineType      = errors.New("unknown engine type")
	ErrWrapperNotFound        = errors.New("wrapper not found")
	ErrAlreadyRunning         = errors.New("wrapper already running")
	ErrAlreadyStarted         = errors.New("proxy already submitted")
	ErrImmutableConfiguration = errors.New("configuration is immutable after submission")
	ErrDuplicateDatasetName   = errors.New("duplicate dataset name")
	ErrDatasetNotFound        = errors.New("dataset not found")
	ErrUnsupportedDatasetType = errors.New("unsupported dataset type")
	ErrNotRunYet              = errors.New("wrapper has not been submitted yet")
	ErrEngineNotReady         = errors.New("engine has not finished running")
	ErrConnection             = errors.New("connection error")
	ErrSerialization          = errors.New("serialization error")
	ErrInvalidTopic           = errors.New("no topic given")
	ErrUnsupportedOperation   = errors.New("unsupported operation")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnknownEngineType, "unknown_engine_type"},
	{ErrWrapperNotFound, "wrapper_not_found"},
	{ErrAlreadyRunning, "already_running"},
	{ErrAlreadyStarted, "already_started"},
	{ErrImmutableConfiguration, "immutable_configuration"},
	{ErrDuplicateDatasetName, "duplicate_dataset_name"},
	{ErrDatasetNotFound, "dataset_not_found"},
	{ErrUnsupportedDatasetType, "unsupported_dataset_type"},
	{ErrNotRunYet, "not_run_yet"},
	{ErrEngineNotReady, "engine_not_ready"},
	{ErrConnection, "connection_error"},
	{ErrSerialization, "serialization_error"},
	{ErrInvalidTopic, "invalid_topic"},
	{ErrUnsupportedOperation, "unsupported_operation"},
}

// ErrorCode returns the wire code for a domain error, or "" if err does not
// wrap any sentinel from the taxonomy.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

// ErrorFromCode returns the sentinel for a wire code, or nil for unknown codes.
func ErrorFromCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
