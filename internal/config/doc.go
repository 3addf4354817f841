// Package config loads, validates, and persists the YAML settings shared by
// the fetcher: FTP endpoint and credentials, the local dependency layout,
// and the network timeout. All fields have working defaults so the tool runs
// with no configuration file at all. The LIBXL_ARCHIVE environment variable
// is also surfaced here because it overrides the network phase entirely.
package config
