// Package release models the vendor's published archives: the system tag and
// archive suffix expected for the running platform, the dotted numeric version
// embedded in an archive name, and the selection of the newest candidate that
// matches the current system from a raw directory listing.
package release
