// Package archive abstracts how release archives are listed and retrieved
// from the remote host. The production implementation speaks FTP; the fetcher
// only depends on the Repository interface, so tests substitute an in-memory
// implementation.
package archive
