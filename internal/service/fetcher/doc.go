// Package fetcher orchestrates a dependency fetch run: check whether the
// target directory already exists, otherwise obtain an archive (environment
// override or FTP download), extract it, and rename the unpacked release
// onto the fixed target path. Transitions are strictly sequential with no
// retries; any failure aborts the run and the CLI maps it to exit status 1.
package fetcher
