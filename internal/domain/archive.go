package domain

// RotationRecord describes one rotation attempt. Archive is empty when the
// live file was left alone.
type RotationRecord struct {
	Rotated bool
	Archive string
	Bytes   int64
}

// BackupResult is the outcome of backing up one file.
type BackupResult struct {
	Source string
	Dest   string
	Err    error
}

// FailureTally counts failed attempts per source for one scan.
type FailureTally map[string]int
