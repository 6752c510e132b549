package localfs

// ExpandOptions configures Expand.
type ExpandOptions struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool

	// IncludeHidden keeps dot files and dot directories.
	IncludeHidden bool
}
